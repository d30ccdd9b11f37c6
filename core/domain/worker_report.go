package domain

import "time"

// Report is the synthesized narrative for one agency. Immutable once generated.
type Report struct {
	Agency      string    `json:"agency"`
	Topic       string    `json:"topic"`
	Body        string    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportRecord is the persisted form of a report.
type ReportRecord struct {
	Agency    string    `json:"agency"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	Report    string    `json:"report"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ReportQuery filters stored reports. Zero values match everything; several
// agencies match any of them.
type ReportQuery struct {
	Agencies []string
	Month    int
	Year     int
	Limit    int
}
