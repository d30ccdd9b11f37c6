// Package persistence implements PostgreSQL adapters.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"report_worker/core/domain"
	"report_worker/core/port/out"
)

// reportSchema creates the reports table. Safe to run on every start.
const reportSchema = `
CREATE TABLE IF NOT EXISTS agency_reports (
	id         BIGSERIAL PRIMARY KEY,
	agency     TEXT        NOT NULL,
	month      SMALLINT    NOT NULL CHECK (month BETWEEN 1 AND 12),
	year       SMALLINT    NOT NULL,
	report     TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_agency_reports_period
	ON agency_reports (year DESC, month DESC, agency);
`

// ReportAdapter implements out.ReportRepository using PostgreSQL.
type ReportAdapter struct {
	db *sqlx.DB
}

// NewReportAdapter creates a new ReportAdapter.
func NewReportAdapter(db *sqlx.DB) *ReportAdapter {
	return &ReportAdapter{db: db}
}

type reportRow struct {
	ID        int64        `db:"id"`
	Agency    string       `db:"agency"`
	Month     int          `db:"month"`
	Year      int          `db:"year"`
	Report    string       `db:"report"`
	CreatedAt sql.NullTime `db:"created_at"`
}

func (r *reportRow) toRecord() *domain.ReportRecord {
	record := &domain.ReportRecord{
		Agency: r.Agency,
		Month:  r.Month,
		Year:   r.Year,
		Report: r.Report,
	}
	if r.CreatedAt.Valid {
		record.CreatedAt = r.CreatedAt.Time
	}
	return record
}

// EnsureSchema creates the table and index if missing.
func (a *ReportAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, reportSchema); err != nil {
		return fmt.Errorf("create agency_reports: %w", err)
	}
	return nil
}

// Insert appends a report row.
func (a *ReportAdapter) Insert(ctx context.Context, record *domain.ReportRecord) error {
	query := `
		INSERT INTO agency_reports (agency, month, year, report)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	return a.db.QueryRowxContext(ctx, query,
		record.Agency,
		record.Month,
		record.Year,
		record.Report,
	).Scan(&record.CreatedAt)
}

// List returns reports ordered by year and month descending, then agency.
func (a *ReportAdapter) List(ctx context.Context, query domain.ReportQuery) ([]*domain.ReportRecord, error) {
	sqlQuery, args := buildListQuery(query)

	var rows []reportRow
	if err := a.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("list agency_reports: %w", err)
	}

	records := make([]*domain.ReportRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord())
	}
	return records, nil
}

func buildListQuery(query domain.ReportQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}
	argIdx := 1

	if len(query.Agencies) > 0 {
		conds = append(conds, fmt.Sprintf("agency = ANY($%d)", argIdx))
		args = append(args, pq.Array(query.Agencies))
		argIdx++
	}
	if query.Month > 0 {
		conds = append(conds, fmt.Sprintf("month = $%d", argIdx))
		args = append(args, query.Month)
		argIdx++
	}
	if query.Year > 0 {
		conds = append(conds, fmt.Sprintf("year = $%d", argIdx))
		args = append(args, query.Year)
		argIdx++
	}

	var b strings.Builder
	b.WriteString("SELECT id, agency, month, year, report, created_at FROM agency_reports")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY year DESC, month DESC, agency")
	if query.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT $%d", argIdx)
		args = append(args, query.Limit)
	}
	return b.String(), args
}

var _ out.ReportRepository = (*ReportAdapter)(nil)
