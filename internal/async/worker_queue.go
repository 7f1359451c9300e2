package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WorkerQueue runs jobs on a fixed pool of goroutines. Jobs for a manifest
// that is already waiting are coalesced into the pending one.
type WorkerQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
}

type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewWorkerQueue(handler Handler, logger *slog.Logger, opts ...Option) *WorkerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerQueue{
		handler: handler,
		logger:  logger,
		workers: 2,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 64),
		pending: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.release(job)
					q.run(workerID, job)
				}

				q.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkerQueue) run(workerID int, job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.handler.Handle(ctx, job); err != nil {
		q.logger.Error("async.job.failed",
			"worker_id", workerID,
			"manifest_id", job.ManifestID,
			"reason", job.Reason,
			"trace_id", job.TraceID,
			"error", err,
		)
		return
	}
	q.logger.Info("async.job.ok",
		"worker_id", workerID,
		"manifest_id", job.ManifestID,
		"reason", job.Reason,
		"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue blocks while the buffer is full until ctx is done.
func (q *WorkerQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("async.enqueue.closed", "manifest_id", job.ManifestID)
		return ErrQueueClosed
	}
	if _, dup := q.pending[job.ManifestID]; dup {
		q.mu.Unlock()
		q.logger.Debug("async.enqueue.coalesced", "manifest_id", job.ManifestID)
		return nil
	}
	q.pending[job.ManifestID] = struct{}{}

	// The send happens under the lock so Shutdown cannot close the channel
	// mid-send; a full buffer falls back to a blocking send outside it.
	select {
	case q.ch <- job:
		q.mu.Unlock()
		q.logger.Debug("async.enqueue.ok", "manifest_id", job.ManifestID, "reason", job.Reason)
		return nil
	default:
	}
	q.mu.Unlock()

	q.logger.Warn("async.enqueue.backpressure", "manifest_id", job.ManifestID)
	return q.blockingSend(ctx, job)
}

func (q *WorkerQueue) blockingSend(ctx context.Context, job Job) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.mu.Lock()
		if q.closed {
			delete(q.pending, job.ManifestID)
			q.mu.Unlock()
			return ErrQueueClosed
		}
		select {
		case q.ch <- job:
			q.mu.Unlock()
			return nil
		default:
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.pending, job.ManifestID)
			q.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *WorkerQueue) release(job Job) {
	q.mu.Lock()
	delete(q.pending, job.ManifestID)
	q.mu.Unlock()
}

// Shutdown stops accepting jobs and waits for queued ones to drain or for ctx.
func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.ok")
	}
}
