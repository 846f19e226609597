package mailqueue

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FailedRetryPolicy decides whether Dequeue may retry an item that has a
// failure record before it is recovered.
type FailedRetryPolicy int

const (
	// RetryFailedImmediately lets the next Dequeue of a failed item try again.
	RetryFailedImmediately FailedRetryPolicy = iota
	// RetryFailedAfterRecover leaves failed items alone until Recover re-queues them.
	RetryFailedAfterRecover
)

func (p FailedRetryPolicy) String() string {
	switch p {
	case RetryFailedAfterRecover:
		return "after_recover"
	default:
		return "immediately"
	}
}

// UnmarshalText parses "immediately" or "after_recover".
func (p *FailedRetryPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "immediately":
		*p = RetryFailedImmediately
	case "after_recover", "after-recover":
		*p = RetryFailedAfterRecover
	default:
		return fmt.Errorf("unknown failed retry policy %q", text)
	}
	return nil
}

// MessageFilter returns false to reject a message before it is spooled.
type MessageFilter func(m Message) bool

// Option configures a queueable transport.
type Option func(*Options)

// Options holds the settings shared by all queueable transports.
type Options struct {
	Logger       *slog.Logger
	MessageLimit int
	TimeLimit    time.Duration
	RetryPolicy  FailedRetryPolicy
	Filters      []MessageFilter
	Clock        func() time.Time
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Logger: slog.Default(),
		Clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Accepts runs the filters against m.
func (o Options) Accepts(m Message) bool {
	for _, f := range o.Filters {
		if !f(m) {
			return false
		}
	}
	return true
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithMessageLimit caps the number of messages sent per flush (0 = unlimited)
func WithMessageLimit(limit int) Option {
	return func(o *Options) {
		if limit >= 0 {
			o.MessageLimit = limit
		}
	}
}

// WithTimeLimit caps the wall-clock duration of a flush (0 = unlimited)
func WithTimeLimit(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.TimeLimit = d
		}
	}
}

// WithFailedRetryPolicy sets how failed items are retried
func WithFailedRetryPolicy(p FailedRetryPolicy) Option {
	return func(o *Options) {
		o.RetryPolicy = p
	}
}

// WithMessageFilter adds a filter run by Enqueue
func WithMessageFilter(f MessageFilter) Option {
	return func(o *Options) {
		if f != nil {
			o.Filters = append(o.Filters, f)
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Clock = now
		}
	}
}

// FlushOption overrides transport limits for a single FlushQueue call.
type FlushOption func(*FlushLimits)

// FlushLimits bounds one flush sweep. Zero values mean unlimited.
type FlushLimits struct {
	MessageLimit int
	TimeLimit    time.Duration
}

// WithFlushMessageLimit overrides the message limit for one flush
func WithFlushMessageLimit(limit int) FlushOption {
	return func(l *FlushLimits) {
		if limit >= 0 {
			l.MessageLimit = limit
		}
	}
}

// WithFlushTimeLimit overrides the time limit for one flush
func WithFlushTimeLimit(d time.Duration) FlushOption {
	return func(l *FlushLimits) {
		if d >= 0 {
			l.TimeLimit = d
		}
	}
}
