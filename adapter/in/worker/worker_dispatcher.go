// Package worker runs report runs in the background and on a schedule.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"report_worker/core/domain"
	"report_worker/core/port/in"
	"report_worker/core/port/out"
	"report_worker/pkg/apperr"
)

// Runner executes a single report run.
type Runner interface {
	Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error)
}

// Dispatcher implements in.TaskService: tasks are stored as queued, run on the
// pool, then stored as completed or failed.
type Dispatcher struct {
	runner Runner
	store  out.TaskStore
	pool   *Pool
	now    func() time.Time
	log    zerolog.Logger
}

var _ in.TaskService = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with its own pool.
func NewDispatcher(runner Runner, store out.TaskStore, config *PoolConfig, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		runner: runner,
		store:  store,
		now:    time.Now,
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
	d.pool = NewPool(d.handle, config, log)
	return d
}

func (d *Dispatcher) Start() error { return d.pool.Start() }
func (d *Dispatcher) Stop()        { d.pool.Stop() }

// Metrics exposes the pool counters.
func (d *Dispatcher) Metrics() PoolMetrics { return d.pool.GetMetrics() }

// Submit stores a queued task and hands it to the pool.
func (d *Dispatcher) Submit(ctx context.Context, req domain.RunRequest) (*domain.Task, error) {
	if !d.pool.Running() {
		return nil, apperr.Unavailable("task queue is not running")
	}

	now := d.now().UTC()
	task := &domain.Task{
		ID:        uuid.NewString(),
		Status:    domain.TaskQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.Put(ctx, task); err != nil {
		return nil, apperr.InternalWithError(err)
	}

	queued := *task
	if !d.pool.Submit(NewMessage(task.ID, JobReportRun, req)) {
		task.Status = domain.TaskFailed
		task.Error = "task queue stopped before the run started"
		task.UpdatedAt = d.now().UTC()
		if err := d.store.Put(ctx, task); err != nil {
			d.log.Warn().Err(err).Str("task_id", task.ID).Msg("failed to record rejected task")
		}
		return nil, apperr.Unavailable("task queue is not running")
	}

	d.log.Info().
		Str("task_id", task.ID).
		Str("agency", req.Agency).
		Int("month", req.Month).
		Int("year", req.Year).
		Msg("task queued")
	return &queued, nil
}

// Get returns a task or a NotFound error.
func (d *Dispatcher) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := d.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, out.ErrTaskNotFound) {
			return nil, apperr.NotFound("task")
		}
		return nil, apperr.InternalWithError(err)
	}
	return task, nil
}

// List returns all known tasks.
func (d *Dispatcher) List(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := d.store.List(ctx)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}
	return tasks, nil
}

func (d *Dispatcher) handle(ctx context.Context, msg *Message) error {
	// State writes must land even when the run itself was cancelled.
	storeCtx := context.WithoutCancel(ctx)
	log := d.log.With().Str("task_id", msg.ID).Str("agency", msg.Request.Agency).Logger()

	task, err := d.store.Get(storeCtx, msg.ID)
	if err != nil {
		log.Error().Err(err).Msg("task vanished before run")
		return err
	}

	task.Status = domain.TaskRunning
	task.UpdatedAt = d.now().UTC()
	if err := d.store.Put(storeCtx, task); err != nil {
		log.Warn().Err(err).Msg("failed to mark task running")
	}

	result, runErr := d.runner.Run(ctx, msg.Request)

	task.UpdatedAt = d.now().UTC()
	if runErr != nil {
		task.Status = domain.TaskFailed
		task.Error = runErr.Error()
	} else {
		task.Status = domain.TaskCompleted
		task.Result = result
	}
	if err := d.store.Put(storeCtx, task); err != nil {
		log.Error().Err(err).Msg("failed to store task outcome")
		return err
	}

	if runErr != nil {
		return runErr
	}
	log.Info().Msg("task completed")
	return nil
}
