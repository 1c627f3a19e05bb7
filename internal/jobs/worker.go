package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/garnizeh/mockinterview/internal/metrics"
)

// package-level logger; replaced by cmd/server.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by the package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type WorkerPool struct {
	repo        *Repository
	handlers    map[string]Handler
	workerCount int
	maxAttempts int
	idle        time.Duration
	backoff     func(attempt int) time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewWorkerPool creates a pool; maxAttempts applies to jobs enqueued through the pool.
func NewWorkerPool(repo *Repository, handlers map[string]Handler, workerCount, maxAttempts int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &WorkerPool{
		repo:        repo,
		handlers:    handlers,
		workerCount: workerCount,
		maxAttempts: maxAttempts,
		idle:        500 * time.Millisecond,
		backoff:     BackoffDuration,
		stop:        make(chan struct{}),
	}
}

// SetPollInterval changes how long an idle worker waits before polling again.
func (p *WorkerPool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.idle = d
	}
}

// SetBackoff replaces the retry schedule.
func (p *WorkerPool) SetBackoff(fn func(attempt int) time.Duration) {
	if fn != nil {
		p.backoff = fn
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := range p.workerCount {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. It is safe to call more than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// wait sleeps for d and reports false if the pool is stopping.
func (p *WorkerPool) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.repo.Claim(ctx)
		if err != nil {
			logger.Error("fetch job", "err", err)
			if !p.wait(ctx, time.Second) {
				return
			}
			continue
		}
		if job == nil {
			if !p.wait(ctx, p.idle) {
				return
			}
			continue
		}
		p.run(ctx, job)
	}
}

func (p *WorkerPool) run(ctx context.Context, job *Job) {
	h, ok := p.handlers[job.Type]
	if !ok {
		job.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			logger.Error("move to dead letter", "job_id", job.ID, "err", err)
		}
		metrics.JobsProcessed.WithLabelValues(job.Type, "dead_letter").Inc()
		return
	}

	err := p.safeCall(ctx, h, job)
	if err == nil {
		job.Status = StatusDone
		if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
			logger.Error("update finished job", "job_id", job.ID, "err", upErr)
		}
		metrics.JobsProcessed.WithLabelValues(job.Type, "done").Inc()
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		logger.Warn("job failed permanently", "job_id", job.ID, "type", job.Type, "attempts", job.Attempts, "err", err)
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			logger.Error("move to dead letter", "job_id", job.ID, "err", mvErr)
		}
		metrics.JobsProcessed.WithLabelValues(job.Type, "dead_letter").Inc()
		return
	}

	next := time.Now().Add(p.backoff(job.Attempts)).UnixMilli()
	job.NextTryAt = &next
	job.Status = StatusRetry
	if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
		logger.Error("update job for retry", "job_id", job.ID, "err", upErr)
	}
	metrics.JobsProcessed.WithLabelValues(job.Type, "retry").Inc()
}

// safeCall turns a handler panic into an error so the job is retried instead of killing the worker.
func (p *WorkerPool) safeCall(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	j := &Job{Type: typ, Payload: b, MaxAttempts: p.maxAttempts}
	return p.repo.Enqueue(ctx, j)
}
