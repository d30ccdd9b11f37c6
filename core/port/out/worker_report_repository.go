package out

import (
	"context"

	"report_worker/core/domain"
)

// ReportRepository stores generated reports. The core only inserts; List backs
// the read API.
type ReportRepository interface {
	Insert(ctx context.Context, record *domain.ReportRecord) error
	List(ctx context.Context, query domain.ReportQuery) ([]*domain.ReportRecord, error)
}
