package mailqueue

import (
	"cmp"
	"context"
	"slices"
)

// Queue is an ordered, read-only view over a transport's backing store.
// Nothing is cached: every call scans the store again.
type Queue struct {
	load func(ctx context.Context) ([]Item, error)
}

// NewQueue creates a view over load. load may return items in any order.
func NewQueue(load func(ctx context.Context) ([]Item, error)) *Queue {
	return &Queue{load: load}
}

// Items returns a fresh snapshot sorted by date, oldest first.
// Items without a date come first; ties are broken by id.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	items, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// Count returns the number of items currently in the store.
func (q *Queue) Count(ctx context.Context) (int, error) {
	items, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Get looks an item up by id.
func (q *Queue) Get(ctx context.Context, id string) (Item, bool, error) {
	items, err := q.load(ctx)
	if err != nil {
		return Item{}, false, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, true, nil
		}
	}
	return Item{}, false, nil
}

// HasFailures reports whether any item is in the failed state.
func (q *Queue) HasFailures(ctx context.Context) (bool, error) {
	items, err := q.load(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(items, func(i Item) bool {
		return i.State == StateFailed
	}), nil
}

func sortItems(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		switch {
		case a.Date == nil && b.Date != nil:
			return -1
		case a.Date != nil && b.Date == nil:
			return 1
		case a.Date != nil && b.Date != nil:
			if c := a.Date.Compare(*b.Date); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
