package jobs

import (
	"context"
	"encoding/json"
	"time"
)

const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusRetry   = "retry"
	StatusDone    = "done"
)

// Job represents a background job. Timestamps are unix milliseconds.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt int64           `json:"scheduled_at"`
	NextTryAt   *int64          `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     int64           `json:"created"`
	Updated     int64           `json:"updated"`
}

// DeadLetter is a job that exhausted its attempts or had no handler.
type DeadLetter struct {
	JobID     string          `json:"job_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error"`
	FailedAt  int64           `json:"failed_at"`
}

// Handler is the function that processes a job
type Handler func(ctx context.Context, j *Job) error

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 16 {
		return 5 * time.Minute
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	return min(d, 5*time.Minute)
}
