package mailqueue

import (
	"context"
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	flushInterval   time.Duration
	recoverInterval time.Duration
	recoverTimeout  time.Duration
	flushOptions    []FlushOption
	healthcheck     func(ctx context.Context) error
	logger          *slog.Logger
}

// WithFlushInterval sets how often the worker drains the queue
func WithFlushInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// WithRecoverInterval sets how often the worker re-queues stale items.
// Recovery only runs when the spool is a RecoverableTransport.
func WithRecoverInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.recoverInterval = d
		}
	}
}

// WithRecoverTimeout sets the age after which an in-flight item is recovered
func WithRecoverTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.recoverTimeout = d
		}
	}
}

// WithWorkerFlushOptions passes limits to every flush sweep
func WithWorkerFlushOptions(opts ...FlushOption) WorkerOption {
	return func(o *workerOptions) {
		o.flushOptions = append(o.flushOptions, opts...)
	}
}

// WithWorkerLogger sets the logger
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHealthcheck sets a probe run before every sweep. A failing probe skips
// the sweep; the next tick tries again.
func WithHealthcheck(check func(ctx context.Context) error) WorkerOption {
	return func(o *workerOptions) {
		o.healthcheck = check
	}
}
