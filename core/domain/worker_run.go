package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunRequest asks for one agency report over a month.
type RunRequest struct {
	Agency string `json:"agency"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
	Limit  int    `json:"limit,omitempty"` // posts checked per channel
}

// Slug is the lowercase agency name used in artifact names. Every rune
// outside [a-z0-9_-] becomes an underscore, so the slug never carries a path
// separator or dot.
func (r RunRequest) Slug() string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
			return c
		default:
			return '_'
		}
	}, strings.ToLower(r.Agency))
}

// MinReportYear is the earliest year a run may target.
const MinReportYear = 2005

// YearRange is the inclusive range of years a run may target at now.
func YearRange(now time.Time) (int, int) {
	return MinReportYear, now.Year() + 1
}

// Period is "<month>-<year>".
func (r RunRequest) Period() string {
	return fmt.Sprintf("%d-%d", r.Month, r.Year)
}

// RunResult summarizes a finished run.
type RunResult struct {
	Agency          string         `json:"agency"`
	Month           int            `json:"month"`
	Year            int            `json:"year"`
	Topic           string         `json:"topic,omitempty"`
	Keywords        []string       `json:"keywords,omitempty"`
	PostsFetched    int            `json:"posts_fetched"`
	CommentsFetched int            `json:"comments_fetched"`
	SkippedChannels []ChannelError `json:"skipped_channels,omitempty"`
	Filter          FilterStats    `json:"filter"`
	Pairs           []FilteredPair `json:"filtered_data,omitempty"`
	Report          string         `json:"report"`
	ReportFile      string         `json:"report_filename"`
	FromCache       bool           `json:"from_cache"`
	Stored          bool           `json:"stored"`
	StoreError      string         `json:"store_error,omitempty"`
	PartialFailure  bool           `json:"partial_failure"`
	Duration        time.Duration  `json:"duration_ns"`
}

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is a background report run.
type Task struct {
	ID        string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	Request   RunRequest `json:"request"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HasResult reports whether the task carries a result or an error payload.
func (t *Task) HasResult() bool {
	return t.Result != nil || t.Error != ""
}
