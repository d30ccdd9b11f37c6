package out

import (
	"context"
	"errors"

	"report_worker/core/domain"
)

// ErrTaskNotFound is returned by TaskStore.Get for unknown ids.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore keeps background task state. Put overwrites by task id.
type TaskStore interface {
	Put(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context) ([]*domain.Task, error)
}
