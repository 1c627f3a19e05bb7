// inputs: job table rows, handlers map
// outputs: job status updates, dead-letter moves on permanent failure
// error modes: db errors, handler errors
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/mockinterview/internal/db"
)

// DefaultLease is how long a running job may go without an update before another worker reclaims it.
const DefaultLease = 10 * time.Minute

const jobColumns = `id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

type Repository struct {
	db    *db.DB
	lease time.Duration
}

func NewRepository(d *db.DB) *Repository { return &Repository{db: d, lease: DefaultLease} }

// Enqueue inserts a job into the jobs table and returns the new ID
func (r *Repository) Enqueue(ctx context.Context, j *Job) (string, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = 3
	}
	now := db.Now()
	if j.ScheduledAt == 0 {
		j.ScheduledAt = now
	}
	j.Status = StatusQueued
	j.Created, j.Updated = now, now

	q := `INSERT INTO jobs (id, type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(ctx, q, j.ID, j.Type, string(j.Payload), j.Status, j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt, now, now); err != nil {
		return "", fmt.Errorf("enqueue failed: %w", err)
	}
	return j.ID, nil
}

// Claim picks the next due job and marks it running. The status change is a
// conditional UPDATE, so a job claimed by another worker in the meantime is skipped.
func (r *Repository) Claim(ctx context.Context) (*Job, error) {
	for range 3 {
		now := db.Now()
		stale := now - r.lease.Milliseconds()
		q := `SELECT ` + jobColumns + ` FROM jobs
			WHERE ((status IN ('queued', 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ?)
				OR (status = 'running' AND updated <= ?))
			ORDER BY priority ASC, scheduled_at ASC LIMIT 1`
		j, err := scanJob(r.db.QueryRow(ctx, q, now, now, stale))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetch next job: %w", err)
		}

		res, err := r.db.Exec(ctx, `UPDATE jobs SET status = 'running', updated = ? WHERE id = ? AND status = ? AND updated = ?`,
			now, j.ID, j.Status, j.Updated)
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", j.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		j.Status = StatusRunning
		j.Updated = now
		return j, nil
	}
	return nil, nil
}

// Get returns a job by id, or nil when it no longer exists.
func (r *Repository) Get(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (r *Repository) UpdateJob(ctx context.Context, j *Job) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = *j.NextTryAt
	}
	j.Updated = db.Now()
	q := `UPDATE jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.db.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, j.Updated, j.ID)
	return err
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (r *Repository) MoveToDeadLetter(ctx context.Context, j *Job) error {
	return r.db.InTx(ctx, func(q db.Querier) error {
		insert := `INSERT INTO dead_letter_jobs (job_id, type, payload, attempts, last_error, failed_at) VALUES (?, ?, ?, ?, ?, ?)`
		if _, err := q.Exec(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, db.Now()); err != nil {
			return fmt.Errorf("insert dead letter: %w", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM jobs WHERE id = ?`, j.ID); err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		return nil
	})
}

// ListDeadLetters returns dead-lettered jobs, most recent first.
func (r *Repository) ListDeadLetters(ctx context.Context) ([]DeadLetter, error) {
	rows, err := r.db.QueryRows(ctx, `SELECT job_id, type, payload, attempts, last_error, failed_at FROM dead_letter_jobs ORDER BY failed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DeadLetter{}
	for rows.Next() {
		var (
			d                  DeadLetter
			payload, lastError sql.NullString
		)
		if err := rows.Scan(&d.JobID, &d.Type, &payload, &d.Attempts, &lastError, &d.FailedAt); err != nil {
			return nil, err
		}
		d.Payload = json.RawMessage(payload.String)
		d.LastError = lastError.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanJob(row *sql.Row) (*Job, error) {
	var (
		j         Job
		payload   sql.NullString
		nextTry   sql.NullInt64
		lastError sql.NullString
	)
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority,
		&j.ScheduledAt, &nextTry, &lastError, &j.Created, &j.Updated); err != nil {
		return nil, err
	}
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := nextTry.Int64
		j.NextTryAt = &t
	}
	j.LastError = lastError.String
	return &j, nil
}
