package mailqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

type memoryEntry struct {
	message  Message
	date     time.Time
	inFlight bool
}

// MemoryTransport keeps the spool in process memory. The queue is lost when
// the process exits. Items are always reported as queued.
type MemoryTransport struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*memoryEntry
	opts    Options
	log     *slog.Logger
}

var _ QueueableTransport = (*MemoryTransport)(nil)

// NewMemoryTransport creates an empty in-memory spool.
func NewMemoryTransport(opts ...Option) *MemoryTransport {
	o := NewOptions(opts...)
	return &MemoryTransport{
		entries: make(map[string]*memoryEntry),
		opts:    o,
		log:     o.Logger.With(logger.Component("mailqueue"), logger.Transport("memory")),
	}
}

func (t *MemoryTransport) MessageLimit() int { return t.opts.MessageLimit }

func (t *MemoryTransport) TimeLimit() time.Duration { return t.opts.TimeLimit }

func (t *MemoryTransport) Queue() *Queue {
	return NewQueue(func(context.Context) ([]Item, error) {
		return t.snapshot(), nil
	})
}

func (t *MemoryTransport) snapshot() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := make([]Item, 0, len(t.order))
	for _, id := range t.order {
		e := t.entries[id]
		date := e.date
		items = append(items, Item{
			ID:      id,
			Message: e.message.Clone(),
			State:   StateQueued,
			Date:    &date,
		})
	}
	return items
}

func (t *MemoryTransport) Send(ctx context.Context, m Message) error {
	_, err := t.Enqueue(ctx, m)
	return err
}

func (t *MemoryTransport) Enqueue(ctx context.Context, m Message) (*Item, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !t.opts.Accepts(m) {
		return nil, nil
	}

	id := NewItemID()
	date := t.opts.Clock()

	t.mu.Lock()
	t.entries[id] = &memoryEntry{message: m.Clone(), date: date}
	t.order = append(t.order, id)
	t.mu.Unlock()

	t.log.DebugContext(ctx, "message enqueued", logger.ItemID(id))
	return &Item{ID: id, Message: m.Clone(), State: StateQueued, Date: &date}, nil
}

func (t *MemoryTransport) Dequeue(ctx context.Context, item Item, real Transport) (bool, error) {
	if real == nil {
		return false, ErrTransportNil
	}

	t.mu.Lock()
	e, ok := t.entries[item.ID]
	if !ok || e.inFlight {
		t.mu.Unlock()
		return false, nil
	}
	e.inFlight = true
	msg := e.message.Clone()
	t.mu.Unlock()

	if err := real.Send(logger.WithItemID(ctx, item.ID), msg); err != nil {
		t.mu.Lock()
		if e, ok := t.entries[item.ID]; ok {
			e.inFlight = false
		}
		t.mu.Unlock()

		te := AsTransportError(err)
		t.log.WarnContext(ctx, "message delivery failed", logger.ItemID(item.ID), logger.Error(te))
		return false, te
	}

	t.mu.Lock()
	t.remove(item.ID)
	t.mu.Unlock()

	t.log.DebugContext(ctx, "message sent", logger.ItemID(item.ID))
	return true, nil
}

func (t *MemoryTransport) Delete(_ context.Context, item Item) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remove(item.ID), nil
}

// remove must be called with mu held.
func (t *MemoryTransport) remove(id string) bool {
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *MemoryTransport) FlushQueue(ctx context.Context, real Transport, opts ...FlushOption) (int, error) {
	if real == nil {
		return 0, ErrTransportNil
	}

	items, err := t.Queue().Items(ctx)
	if err != nil {
		return 0, err
	}

	sent, err := Flush(ctx, items, func(ctx context.Context, item Item) (bool, error) {
		return t.Dequeue(ctx, item, real)
	}, t.opts.ResolveFlushLimits(opts...), t.opts.Clock)

	t.log.InfoContext(ctx, "queue flushed", logger.Count(sent), logger.Error(err))
	return sent, err
}
