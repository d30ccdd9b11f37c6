package worker

import (
	"time"

	"report_worker/core/domain"
)

// JobType represents the type of a job.
type JobType = string

const (
	// JobReportRun executes one agency report run.
	JobReportRun JobType = "report.run"
)

// Message is one unit of work for the pool. ID is the task id.
type Message struct {
	ID        string            `json:"id"`
	Type      JobType           `json:"type"`
	Request   domain.RunRequest `json:"request"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewMessage(id string, jobType JobType, req domain.RunRequest) *Message {
	return &Message{
		ID:        id,
		Type:      jobType,
		Request:   req,
		CreatedAt: time.Now(),
	}
}
