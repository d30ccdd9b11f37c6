package out

import (
	"context"

	"report_worker/core/domain"
)

// ArtifactStore keeps the per-run files: fetched posts and comments, and the
// rendered markdown report.
type ArtifactStore interface {
	HasForumData(ctx context.Context, req domain.RunRequest) (bool, error)
	LoadForumData(ctx context.Context, req domain.RunRequest) (*ForumData, error)
	SaveForumData(ctx context.Context, req domain.RunRequest, data *ForumData) error

	LoadReport(ctx context.Context, req domain.RunRequest) (body string, name string, ok bool, err error)
	SaveReport(ctx context.Context, req domain.RunRequest, body string) (name string, err error)
}
