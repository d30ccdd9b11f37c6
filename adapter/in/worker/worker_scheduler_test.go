package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report_worker/core/domain"
)

type recordingSubmitter struct {
	reqs []domain.RunRequest
	fail map[string]bool
}

func (r *recordingSubmitter) Submit(_ context.Context, req domain.RunRequest) (*domain.Task, error) {
	if r.fail[req.Agency] {
		return nil, errors.New("queue full")
	}
	r.reqs = append(r.reqs, req)
	return &domain.Task{ID: req.Agency, Status: domain.TaskQueued, Request: req}, nil
}

func TestPreviousMonth(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantMonth int
		wantYear  int
	}{
		{"mid year", time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC), 6, 2024},
		{"january wraps", time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), 12, 2023},
		{"march after leap february", time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC), 2, 2024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			month, year := PreviousMonth(tt.now)
			assert.Equal(t, tt.wantMonth, month)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestScheduler_SubmitPreviousMonth(t *testing.T) {
	sub := &recordingSubmitter{fail: map[string]bool{"MBTA": true}}
	s, err := NewScheduler("", time.UTC, []string{"MassHealth", "MBTA", "Department of Revenue"}, sub, zerolog.Nop())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC) }

	tasks := s.SubmitPreviousMonth(context.Background())

	require.Len(t, tasks, 2)
	assert.Equal(t, []domain.RunRequest{
		{Agency: "MassHealth", Month: 12, Year: 2024},
		{Agency: "Department of Revenue", Month: 12, Year: 2024},
	}, sub.reqs)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("every tuesday", time.UTC, nil, &recordingSubmitter{}, zerolog.Nop())
	assert.Error(t, err)
}
