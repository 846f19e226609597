package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/pkg/redis"
	"github.com/dmitrymomot/mailqueue/pkg/redisqueue"
	"github.com/dmitrymomot/mailqueue/pkg/transport"
)

var (
	ErrUnknownBackend    = errors.New("unknown queue backend")
	ErrNotRecoverable    = errors.New("queue backend does not support recovery")
	ErrInvalidLimit      = errors.New("limit must be a number greater than or equal to 1")
	ErrFailuresInQueue   = errors.New("mail queue contains failed items")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// App holds the dependencies shared by all commands. Nil fields are built
// from Config on first use, so tests can inject a spool or a real transport.
type App struct {
	Config    Config
	Logger    *slog.Logger
	Spool     mailqueue.QueueableTransport
	Transport mailqueue.Transport

	configured  bool
	format      Format
	healthcheck func(ctx context.Context) error
	closers     []func() error
}

// NewApp creates an App whose logger follows cfg.Log.
func NewApp(cfg Config) *App {
	return &App{
		Config:     cfg,
		Logger:     logger.New(logger.FromConfig(cfg.Log)...),
		configured: true,
	}
}

func (a *App) log() *slog.Logger {
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	return a.Logger
}

// spool returns the configured queue backend, opening it when needed.
func (a *App) spool(ctx context.Context) (mailqueue.QueueableTransport, error) {
	if a.Spool != nil {
		return a.Spool, nil
	}

	cfg := a.Config.Queue
	opts := append(cfg.Options(), mailqueue.WithLogger(a.log()))

	switch cfg.Backend {
	case mailqueue.BackendFile, "":
		t, err := mailqueue.NewFileTransport(cfg.Path, opts...)
		if err != nil {
			return nil, err
		}
		a.Spool = t
	case mailqueue.BackendMemory:
		a.Spool = mailqueue.NewMemoryTransport(opts...)
	case mailqueue.BackendRedis:
		client, err := redis.Connect(ctx, a.Config.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.healthcheck = redis.Healthcheck(client)
		t, err := redisqueue.New(client, a.Config.RedisQueue, opts...)
		if err != nil {
			return nil, err
		}
		a.Spool = t
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	a.log().Debug("queue backend opened", slog.String("backend", string(cfg.Backend)))
	return a.Spool, nil
}

// realTransport returns the transport messages are flushed into.
func (a *App) realTransport(ctx context.Context) (mailqueue.Transport, error) {
	if a.Transport != nil {
		return a.Transport, nil
	}
	t, err := transport.New(ctx, a.Config.Delivery)
	if err != nil {
		return nil, err
	}
	a.Transport = t
	return t, nil
}

// Close releases connections opened by the app.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
