package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/opphub/internal/models"
	"github.com/garnizeh/opphub/pkg/repository"
)

type Options struct {
	Workers int
	// PollInterval is the idle wait between empty fetches.
	PollInterval time.Duration
	// MaxAttempts is used when Enqueue gets 0.
	MaxAttempts int
	Logger      *slog.Logger
}

type WorkerPool struct {
	repo        repository.JobRepo
	handlers    map[string]Handler
	logger      *slog.Logger
	workerCount int
	poll        time.Duration
	maxAttempts int
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewWorkerPool(repo repository.JobRepo, handlers map[string]Handler, opts Options) *WorkerPool {
	p := &WorkerPool{
		repo:        repo,
		handlers:    handlers,
		logger:      opts.Logger,
		workerCount: opts.Workers,
		poll:        opts.PollInterval,
		maxAttempts: opts.MaxAttempts,
		stop:        make(chan struct{}),
	}
	if p.workerCount <= 0 {
		p.workerCount = 2
	}
	if p.poll <= 0 {
		p.poll = 500 * time.Millisecond
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.handlers == nil {
		p.handlers = map[string]Handler{}
	}

	return p
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("job workers started", "count", p.workerCount, "poll", p.poll)
}

// Stop signals workers to stop and waits for them. It is safe to call twice.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// wait sleeps for d unless the pool stops first.
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
			p.logger.Debug("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Debug("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.repo.FetchNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("fetch job", "err", err)
			}
			if !p.wait(ctx, 2*p.poll) {
				return
			}
			continue
		}
		if job == nil {
			if !p.wait(ctx, p.poll) {
				return
			}
			continue
		}

		p.process(ctx, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, job *models.BackgroundJob) {
	logger := p.logger.With("job", job.ID, "type", job.Type)

	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = ErrNoHandler.Error()
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			logger.Error("move to dead letter", "err", err)
		}
		logger.Warn("job has no handler")
		return
	}

	start := time.Now()
	err := run(ctx, h, job)
	if err == nil {
		job.Status = StatusDone
		job.LastError = ""
		if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
			logger.Error("mark job done", "err", upErr)
		}
		logger.Debug("job done", "took", time.Since(start))
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			logger.Error("move to dead letter", "err", mvErr)
		}
		logger.Warn("job failed permanently", "attempts", job.Attempts, "err", err)
		return
	}

	t := time.Now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
		logger.Error("update job for retry", "err", upErr)
	}
	logger.Info("job will retry", "attempt", job.Attempts, "next", t, "err", err)
}

// run calls h and turns a panic into an error so one bad job cannot take the
// worker down.
func run(ctx context.Context, h Handler, job *models.BackgroundJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h(ctx, job)
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode job payload: %w", err)
	}
	if maxAttempts <= 0 {
		maxAttempts = p.maxAttempts
	}
	j := &models.BackgroundJob{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}

	return p.repo.Enqueue(ctx, j)
}

// DeadLetters lists jobs that exhausted their attempts.
func (p *WorkerPool) DeadLetters(ctx context.Context, limit int) ([]models.DeadLetterJob, error) {
	return p.repo.ListDeadLetters(ctx, limit)
}
