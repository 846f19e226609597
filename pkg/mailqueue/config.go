package mailqueue

import "time"

// Backend names a spool implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config holds the queue settings read from the environment.
type Config struct {
	Backend         Backend           `env:"MAILQUEUE_BACKEND" envDefault:"file"`
	Path            string            `env:"MAILQUEUE_PATH" envDefault:"./var/mailqueue"`
	MessageLimit    int               `env:"MAILQUEUE_MESSAGE_LIMIT" envDefault:"0"`
	TimeLimit       time.Duration     `env:"MAILQUEUE_TIME_LIMIT" envDefault:"0s"`
	RecoverTimeout  time.Duration     `env:"MAILQUEUE_RECOVER_TIMEOUT" envDefault:"15m"`
	RetryFailed     FailedRetryPolicy `env:"MAILQUEUE_RETRY_FAILED" envDefault:"immediately"`
	FlushInterval   time.Duration     `env:"MAILQUEUE_FLUSH_INTERVAL" envDefault:"1m"`
	RecoverInterval time.Duration     `env:"MAILQUEUE_RECOVER_INTERVAL" envDefault:"5m"`
}

// Options converts the config into transport options.
func (c Config) Options() []Option {
	return []Option{
		WithMessageLimit(c.MessageLimit),
		WithTimeLimit(c.TimeLimit),
		WithFailedRetryPolicy(c.RetryFailed),
	}
}

// WorkerOptions converts the config into worker options.
func (c Config) WorkerOptions() []WorkerOption {
	return []WorkerOption{
		WithFlushInterval(c.FlushInterval),
		WithRecoverInterval(c.RecoverInterval),
		WithRecoverTimeout(c.RecoverTimeout),
	}
}
