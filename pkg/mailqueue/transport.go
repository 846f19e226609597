package mailqueue

import (
	"context"
	"time"
)

// Transport delivers a message for real: an API client, a relay, a drop box.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, m Message) error

func (f TransportFunc) Send(ctx context.Context, m Message) error {
	return f(ctx, m)
}

// QueueableTransport spools messages instead of delivering them.
// Send enqueues the message and drops the resulting item.
type QueueableTransport interface {
	Transport

	// Queue returns a live view of the spool.
	Queue() *Queue

	// Enqueue stores m and returns the created item.
	// A message rejected by a filter yields (nil, nil).
	Enqueue(ctx context.Context, m Message) (*Item, error)

	// Dequeue claims item and hands it to real. It returns false without
	// calling real when another consumer owns or already delivered the item.
	Dequeue(ctx context.Context, item Item, real Transport) (bool, error)

	// Delete removes item. It returns false when the item no longer exists.
	Delete(ctx context.Context, item Item) (bool, error)

	// FlushQueue drains queued items through real and returns how many were sent.
	FlushQueue(ctx context.Context, real Transport, opts ...FlushOption) (int, error)

	MessageLimit() int
	TimeLimit() time.Duration
}

// RecoverableTransport can return stale in-flight items to the queue.
type RecoverableTransport interface {
	QueueableTransport

	// Recover re-queues every in-flight item whose last claim is at least
	// timeout old and clears its failure record.
	Recover(ctx context.Context, timeout time.Duration) error
}

// DefaultRecoverTimeout is the age after which an in-flight item is considered abandoned.
const DefaultRecoverTimeout = 900 * time.Second
