// Package jobs runs queued background work, such as opportunity summaries,
// on a small pool of workers backed by the jobs table. Failed jobs are retried
// with exponential backoff and moved to the dead letter table once they run
// out of attempts.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/opphub/internal/models"
)

const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusRetry   = "retry"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// DefaultMaxAttempts applies when a job is enqueued without a limit.
const DefaultMaxAttempts = 5

// Handler processes one job. A non-nil error schedules a retry.
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// ErrNoHandler is recorded on jobs whose type nobody handles.
var ErrNoHandler = errors.New("no handler")

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	limit := 5 * time.Minute
	if d > limit {
		return limit
	}

	return d
}
