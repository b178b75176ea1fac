package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}

// Job is one requested background generation for a product photo.
type Job struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	StyleID   string    `json:"style_id"`
	Status    JobStatus `json:"status"`
	ResultURL *string   `json:"result_url"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJob describes the fields supplied when a job is created.
type NewJob struct {
	UserID   string
	ImageURL string
	StyleID  string
}
