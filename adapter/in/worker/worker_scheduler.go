package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"report_worker/core/domain"
)

// DefaultSchedule runs at 06:00 on the first day of every month.
const DefaultSchedule = "0 6 1 * *"

// Submitter queues report runs.
type Submitter interface {
	Submit(ctx context.Context, req domain.RunRequest) (*domain.Task, error)
}

// Scheduler submits the previous month's run for every agency on a cron spec.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	agencies  []string
	submitter Submitter
	location  *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// NewScheduler validates spec and registers the monthly job.
func NewScheduler(spec string, loc *time.Location, agencies []string, submitter Submitter, log zerolog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		spec:      spec,
		agencies:  agencies,
		submitter: submitter,
		location:  loc,
		now:       time.Now,
		log:       log.With().Str("component", "scheduler").Logger(),
	}

	if _, err := s.cron.AddFunc(spec, func() {
		s.SubmitPreviousMonth(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("adding cron entry %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().
		Str("cron", s.spec).
		Str("timezone", s.location.String()).
		Int("agencies", len(s.agencies)).
		Msg("report schedule started")
}

// Stop halts the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SubmitPreviousMonth queues one run per agency for the month before now.
// Agencies that fail to queue are logged and skipped.
func (s *Scheduler) SubmitPreviousMonth(ctx context.Context) []*domain.Task {
	month, year := PreviousMonth(s.now().In(s.location))

	tasks := make([]*domain.Task, 0, len(s.agencies))
	for _, agency := range s.agencies {
		task, err := s.submitter.Submit(ctx, domain.RunRequest{Agency: agency, Month: month, Year: year})
		if err != nil {
			s.log.Error().Err(err).Str("agency", agency).Msg("failed to queue scheduled run")
			continue
		}
		tasks = append(tasks, task)
	}

	s.log.Info().
		Int("month", month).
		Int("year", year).
		Int("queued", len(tasks)).
		Msg("scheduled runs queued")
	return tasks
}

// PreviousMonth returns the calendar month before t.
func PreviousMonth(t time.Time) (month, year int) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	prev := first.AddDate(0, -1, 0)
	return int(prev.Month()), prev.Year()
}
