package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// Worker periodically flushes a spool through a real transport and, when the
// spool supports it, recovers items left in flight by crashed consumers.
type Worker struct {
	spool QueueableTransport
	real  Transport
	wg    sync.WaitGroup
	mu    sync.Mutex

	flushInterval   time.Duration
	recoverInterval time.Duration
	recoverTimeout  time.Duration
	flushOptions    []FlushOption
	healthcheck     func(ctx context.Context) error
	logger          *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
	sent     atomic.Int64
}

// NewWorker creates a worker draining spool into real.
func NewWorker(spool QueueableTransport, real Transport, opts ...WorkerOption) (*Worker, error) {
	if spool == nil {
		return nil, ErrSpoolNil
	}
	if real == nil {
		return nil, ErrTransportNil
	}

	options := &workerOptions{
		flushInterval:   time.Minute,
		recoverInterval: 5 * time.Minute,
		recoverTimeout:  DefaultRecoverTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		spool:           spool,
		real:            real,
		flushInterval:   options.flushInterval,
		recoverInterval: options.recoverInterval,
		recoverTimeout:  options.recoverTimeout,
		flushOptions:    options.flushOptions,
		healthcheck:     options.healthcheck,
		logger:          options.logger.With(logger.Component("worker")),
	}, nil
}

// Sent returns the number of messages delivered since the worker was created.
func (w *Worker) Sent() int64 {
	return w.sent.Load()
}

// Start begins sweeping in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("worker started",
		slog.Duration("flush_interval", w.flushInterval),
		slog.Duration("recover_interval", w.recoverInterval),
		slog.Bool("recoverable", w.recoverable() != nil))

	return nil
}

// Stop cancels the running sweep loop and waits for it to exit.
// A message already handed to the real transport finishes first.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	w.stopping.Store(true)

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped", slog.Int64("sent", w.sent.Load()))
	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// Sweep performs one recover pass (when supported) followed by one flush pass.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	var errs []error
	if err := w.recover(ctx); err != nil {
		errs = append(errs, err)
	}
	sent, err := w.flush(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	return sent, errors.Join(errs...)
}

func (w *Worker) run() {
	defer w.wg.Done()

	flushTicker := time.NewTicker(w.flushInterval)
	defer flushTicker.Stop()

	var recoverC <-chan time.Time
	if w.recoverable() != nil {
		recoverTicker := time.NewTicker(w.recoverInterval)
		defer recoverTicker.Stop()
		recoverC = recoverTicker.C
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-recoverC:
			if w.stopping.Load() {
				return
			}
			if !w.healthy() {
				continue
			}
			if err := w.safely(w.recover); err != nil {
				w.logger.Error("recover sweep failed", logger.Error(err))
			}
		case <-flushTicker.C:
			if w.stopping.Load() {
				return
			}
			if !w.healthy() {
				continue
			}
			if err := w.safely(func(ctx context.Context) error {
				_, err := w.flush(ctx)
				return err
			}); err != nil {
				// the failed item keeps its failure record; the next tick goes on
				w.logger.Warn("flush sweep stopped", logger.Error(err))
			}
		}
	}
}

func (w *Worker) healthy() bool {
	if w.healthcheck == nil {
		return true
	}
	if err := w.healthcheck(w.ctx); err != nil {
		w.logger.Warn("backend unhealthy, sweep skipped", logger.Error(err))
		return false
	}
	return true
}

// safely runs a sweep, turning a panic in the real transport into an error.
func (w *Worker) safely(sweep func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sweep: %v", r)
		}
	}()

	return sweep(w.ctx)
}

func (w *Worker) flush(ctx context.Context) (int, error) {
	sent, err := w.spool.FlushQueue(ctx, detached(w.real), w.flushOptions...)
	w.sent.Add(int64(sent))
	return sent, err
}

func (w *Worker) recover(ctx context.Context) error {
	r := w.recoverable()
	if r == nil {
		return nil
	}
	return r.Recover(ctx, w.recoverTimeout)
}

func (w *Worker) recoverable() RecoverableTransport {
	r, _ := w.spool.(RecoverableTransport)
	return r
}

// detached shields a send in progress from worker shutdown. Cancellation
// still stops a sweep between two messages.
func detached(real Transport) Transport {
	return TransportFunc(func(ctx context.Context, m Message) error {
		return real.Send(context.WithoutCancel(ctx), m)
	})
}
