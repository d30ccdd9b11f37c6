package in

import (
	"context"

	"report_worker/core/domain"
)

// FilterService runs the two-stage relevance filter.
type FilterService interface {
	Run(ctx context.Context, posts []domain.Post, comments []domain.Comment, topic string) (*domain.FilterResult, error)
}

// ReportSynthesizer produces the narrative report from filtered pairs.
type ReportSynthesizer interface {
	Synthesize(ctx context.Context, pairs []domain.FilteredPair, agency, topic string) (*domain.Report, error)
}

// AgencyMetadata derives the search keywords and topic for an agency.
type AgencyMetadata interface {
	GenerateKeywords(ctx context.Context, agency string) ([]string, error)
	GenerateTopic(ctx context.Context, agency string) (string, error)
}

// RunService executes report runs and serves stored reports.
type RunService interface {
	Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error)
	Reports(ctx context.Context, query domain.ReportQuery) ([]*domain.ReportRecord, error)
}

// TaskService queues runs in the background and reports their state.
type TaskService interface {
	Submit(ctx context.Context, req domain.RunRequest) (*domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context) ([]*domain.Task, error)
}
