package anchor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tracehub/internal/anchor/metrics"
	"tracehub/internal/queue"
)

// DefaultConcurrency bounds how many jobs are processed at once.
const DefaultConcurrency = 3

// dequeueRetryDelay spaces out retries when the queue itself is failing, so a
// redis outage does not turn every pool goroutine into a log-flooding spin.
const dequeueRetryDelay = time.Second

// Pool feeds dequeued jobs to a Worker with bounded concurrency and maps each
// Result back to a queue acknowledgement.
type Pool struct {
	queue   queue.Queue
	worker  *Worker
	size    int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPool constructs a Pool. size <= 0 falls back to DefaultConcurrency.
func NewPool(q queue.Queue, worker *Worker, size int, logger *slog.Logger) (*Pool, error) {
	if q == nil {
		return nil, errors.New("queue is required")
	}
	if worker == nil {
		return nil, errors.New("worker is required")
	}
	if size <= 0 {
		size = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:   q,
		worker:  worker,
		size:    size,
		metrics: worker.metrics,
		logger:  logger,
	}, nil
}

// Run consumes jobs until ctx is cancelled. It returns ctx.Err() on shutdown
// so callers can distinguish a clean stop from a queue failure.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			for {
				job, err := p.queue.Dequeue(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					p.logger.Error("dequeue failed", "error", err)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(dequeueRetryDelay):
					}
					continue
				}
				p.handle(ctx, job)
			}
		})
	}
	return g.Wait()
}

func (p *Pool) handle(ctx context.Context, job queue.Job) {
	p.metrics.JobStarted()
	start := time.Now()
	res := p.worker.Process(ctx, job)
	p.metrics.ObserveJobLatency(time.Since(start))
	p.metrics.JobFinished()
	p.metrics.IncrementOutcome(res.Outcome.String())

	switch {
	case res.Outcome == OutcomeFailed && res.Retry:
		p.logger.Warn("anchor job failed, scheduling retry",
			"passportId", job.RecordID, "attempt", job.Attempt, "error", res.Err)
		if err := p.queue.Fail(ctx, job, res.Err.Error()); err != nil {
			p.logger.Error("failed to nack job", "passportId", job.RecordID, "error", err)
		}
	case res.Outcome == OutcomeFailed:
		// Permanent: acknowledge and release the identity key so a
		// corrective edit can re-enqueue immediately.
		p.logger.Error("anchor job failed permanently",
			"passportId", job.RecordID, "error", res.Err)
		if err := p.queue.Complete(ctx, job); err != nil {
			p.logger.Error("failed to ack job", "passportId", job.RecordID, "error", err)
		}
	default:
		if err := p.queue.Complete(ctx, job); err != nil {
			p.logger.Error("failed to ack job", "passportId", job.RecordID, "error", err)
		}
	}
}
