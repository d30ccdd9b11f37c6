package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"report_worker/adapter/in/worker"
	"report_worker/config"
	"report_worker/pkg/logger"
)

// Worker owns the background side of the process: the task pool and,
// when enabled, the monthly scheduler.
type Worker struct {
	Dispatcher *worker.Dispatcher
	scheduler  *worker.Scheduler
	log        zerolog.Logger
}

// NewWorker builds the dispatcher, plus a scheduler when schedule is set.
func NewWorker(cfg *config.Config, deps *Dependencies, schedule bool) (*Worker, error) {
	poolCfg := worker.DefaultPoolConfig()
	poolCfg.Workers = cfg.WorkerCount
	poolCfg.JobTimeout = cfg.JobTimeout

	w := &Worker{
		Dispatcher: worker.NewDispatcher(deps.RunService, deps.Tasks, poolCfg, logger.Component("dispatcher")),
		log:        logger.Component("worker"),
	}

	if schedule {
		s, err := worker.NewScheduler(cfg.ScheduleSpec, cfg.Location(), cfg.Catalog.AgencyNames(), w.Dispatcher, logger.Component("scheduler"))
		if err != nil {
			return nil, err
		}
		w.scheduler = s
	}
	return w, nil
}

func (w *Worker) Start() error {
	if err := w.Dispatcher.Start(); err != nil {
		return err
	}
	if w.scheduler != nil {
		w.scheduler.Start()
	}
	w.log.Info().Bool("scheduled", w.scheduler != nil).Msg("worker started")
	return nil
}

// Stop halts the scheduler first so no new runs are queued during shutdown.
func (w *Worker) Stop(ctx context.Context) {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.Dispatcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn().Msg("worker stop timed out")
	}

	m := w.Dispatcher.Metrics()
	w.log.Info().
		Int64("processed", m.JobsProcessed).
		Int64("failed", m.JobsFailed).
		Int64("avg_process_ms", m.AvgProcessTime).
		Msg("worker stopped")
}
