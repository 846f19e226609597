package mailqueue

import (
	"context"
	"time"
)

// DequeueFunc claims and delivers one item.
type DequeueFunc func(ctx context.Context, item Item) (bool, error)

// Flush runs dequeue over items in order until the items run out, a limit is
// reached or dequeue fails. Limits are checked after every successful send.
// Lost races are skipped. The count sent so far is returned with the error.
func Flush(ctx context.Context, items []Item, dequeue DequeueFunc, limits FlushLimits, now func() time.Time) (int, error) {
	if now == nil {
		now = time.Now
	}
	start := now()
	sent := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		ok, err := dequeue(ctx, item)
		if err != nil {
			return sent, err
		}
		if !ok {
			continue
		}
		sent++

		if limits.MessageLimit > 0 && sent >= limits.MessageLimit {
			break
		}
		if limits.TimeLimit > 0 && now().Sub(start) >= limits.TimeLimit {
			break
		}
	}

	return sent, nil
}

// ResolveFlushLimits applies per-call overrides to the transport defaults.
func (o Options) ResolveFlushLimits(opts ...FlushOption) FlushLimits {
	l := FlushLimits{MessageLimit: o.MessageLimit, TimeLimit: o.TimeLimit}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}
