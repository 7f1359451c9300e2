package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("async: queue is shutting down")

// Job asks for the vector documents of one manifest to be rebuilt. An empty
// ManifestID means every manifest.
type Job struct {
	ManifestID  string
	Reason      string
	SubmittedAt time.Time
	TraceID     string
}

// Handler processes a single job. Errors are logged by the queue.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
