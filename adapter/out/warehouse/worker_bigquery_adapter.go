// Package warehouse stores reports in a BigQuery table.
package warehouse

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"report_worker/core/domain"
	"report_worker/core/port/out"
	"report_worker/pkg/resilience"
)

// Config names the target table.
type Config struct {
	ProjectID       string
	Dataset         string
	Table           string
	Location        string
	CredentialsFile string
}

// DefaultConfig returns the table the dashboard reads from.
func DefaultConfig() Config {
	return Config{
		ProjectID: "sundai-club-434220",
		Dataset:   "bostonreports",
		Table:     "boston-reports",
		Location:  "US",
	}
}

// BigQueryAdapter implements out.ReportRepository on a BigQuery table with
// columns agency, month, year and report.
type BigQueryAdapter struct {
	service *bigquery.Service
	cfg     Config
	breaker *resilience.CircuitBreaker
	log     zerolog.Logger
}

// NewBigQueryAdapter creates the BigQuery client. Extra options are appended
// after the credentials option.
func NewBigQueryAdapter(ctx context.Context, cfg Config, breaker *resilience.CircuitBreaker, log zerolog.Logger, opts ...option.ClientOption) (*BigQueryAdapter, error) {
	if cfg.ProjectID == "" || cfg.Dataset == "" || cfg.Table == "" {
		return nil, fmt.Errorf("bigquery: project, dataset and table are required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := bigquery.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: create service: %w", err)
	}

	return &BigQueryAdapter{
		service: service,
		cfg:     cfg,
		breaker: breaker,
		log:     log.With().Str("component", "bigquery").Logger(),
	}, nil
}

// Insert streams one row into the table.
func (a *BigQueryAdapter) Insert(ctx context.Context, record *domain.ReportRecord) error {
	req := &bigquery.TableDataInsertAllRequest{
		Rows: []*bigquery.TableDataInsertAllRequestRows{{
			InsertId: uuid.NewString(),
			Json: map[string]bigquery.JsonValue{
				"agency": record.Agency,
				"month":  record.Month,
				"year":   record.Year,
				"report": record.Report,
			},
		}},
	}

	resp, err := resilience.Execute(a.breaker, func() (*bigquery.TableDataInsertAllResponse, error) {
		return a.service.Tabledata.
			InsertAll(a.cfg.ProjectID, a.cfg.Dataset, a.cfg.Table, req).
			Context(ctx).
			Do()
	})
	if err != nil {
		return fmt.Errorf("bigquery insert: %w", err)
	}
	if len(resp.InsertErrors) > 0 {
		return fmt.Errorf("bigquery insert: %s", insertErrorMessage(resp.InsertErrors))
	}

	a.log.Info().
		Str("agency", record.Agency).
		Int("month", record.Month).
		Int("year", record.Year).
		Msg("report inserted")
	return nil
}

// List runs a parameterised query ordered by year and month descending, then agency.
func (a *BigQueryAdapter) List(ctx context.Context, query domain.ReportQuery) ([]*domain.ReportRecord, error) {
	req := a.buildQuery(query)

	resp, err := resilience.Execute(a.breaker, func() (*bigquery.QueryResponse, error) {
		return a.service.Jobs.Query(a.cfg.ProjectID, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("bigquery query: %w", err)
	}

	rows := resp.Rows
	complete := resp.JobComplete
	pageToken := resp.PageToken
	job := resp.JobReference

	for !complete || pageToken != "" {
		if job == nil {
			return nil, fmt.Errorf("bigquery query: incomplete job without reference")
		}
		call := a.service.Jobs.GetQueryResults(a.cfg.ProjectID, job.JobId).Context(ctx)
		if job.Location != "" {
			call = call.Location(job.Location)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := resilience.Execute(a.breaker, func() (*bigquery.GetQueryResultsResponse, error) {
			return call.Do()
		})
		if err != nil {
			return nil, fmt.Errorf("bigquery results: %w", err)
		}
		if page.JobComplete {
			rows = append(rows, page.Rows...)
		}
		complete = page.JobComplete
		pageToken = page.PageToken
	}

	records := make([]*domain.ReportRecord, 0, len(rows))
	for i, row := range rows {
		record, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("bigquery row %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (a *BigQueryAdapter) buildQuery(query domain.ReportQuery) *bigquery.QueryRequest {
	var conds []string
	var params []*bigquery.QueryParameter

	if len(query.Agencies) > 0 {
		conds = append(conds, "agency IN UNNEST(@agencies)")
		values := make([]*bigquery.QueryParameterValue, 0, len(query.Agencies))
		for _, agency := range query.Agencies {
			values = append(values, &bigquery.QueryParameterValue{Value: agency})
		}
		params = append(params, &bigquery.QueryParameter{
			Name: "agencies",
			ParameterType: &bigquery.QueryParameterType{
				Type:      "ARRAY",
				ArrayType: &bigquery.QueryParameterType{Type: "STRING"},
			},
			ParameterValue: &bigquery.QueryParameterValue{ArrayValues: values},
		})
	}
	if query.Month > 0 {
		conds = append(conds, "month = @month")
		params = append(params, intParam("month", query.Month))
	}
	if query.Year > 0 {
		conds = append(conds, "year = @year")
		params = append(params, intParam("year", query.Year))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT agency, month, year, report FROM `%s.%s.%s`", a.cfg.ProjectID, a.cfg.Dataset, a.cfg.Table)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY year DESC, month DESC, agency")
	if query.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", query.Limit)
	}

	useLegacy := false
	return &bigquery.QueryRequest{
		Query:           b.String(),
		UseLegacySql:    &useLegacy,
		ParameterMode:   "NAMED",
		QueryParameters: params,
		Location:        a.cfg.Location,
		TimeoutMs:       10000,
	}
}

func intParam(name string, v int) *bigquery.QueryParameter {
	return &bigquery.QueryParameter{
		Name:           name,
		ParameterType:  &bigquery.QueryParameterType{Type: "INT64"},
		ParameterValue: &bigquery.QueryParameterValue{Value: strconv.Itoa(v)},
	}
}

func parseRow(row *bigquery.TableRow) (*domain.ReportRecord, error) {
	if row == nil || len(row.F) < 4 {
		return nil, fmt.Errorf("expected 4 columns")
	}
	month, err := strconv.Atoi(cellString(row.F[1]))
	if err != nil {
		return nil, fmt.Errorf("month: %w", err)
	}
	year, err := strconv.Atoi(cellString(row.F[2]))
	if err != nil {
		return nil, fmt.Errorf("year: %w", err)
	}
	return &domain.ReportRecord{
		Agency: cellString(row.F[0]),
		Month:  month,
		Year:   year,
		Report: cellString(row.F[3]),
	}, nil
}

// cellString reads a scalar cell. BigQuery encodes every scalar as a JSON string.
func cellString(cell *bigquery.TableCell) string {
	if cell == nil || cell.V == nil {
		return ""
	}
	if s, ok := cell.V.(string); ok {
		return s
	}
	return fmt.Sprint(cell.V)
}

func insertErrorMessage(errs []*bigquery.TableDataInsertAllResponseInsertErrors) string {
	var msgs []string
	for _, rowErr := range errs {
		for _, e := range rowErr.Errors {
			msgs = append(msgs, fmt.Sprintf("row %d: %s (%s)", rowErr.Index, e.Message, e.Reason))
		}
	}
	if len(msgs) == 0 {
		return "rejected rows"
	}
	return strings.Join(msgs, "; ")
}

var _ out.ReportRepository = (*BigQueryAdapter)(nil)
