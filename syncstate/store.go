package syncstate

import (
	"sync"
	"time"
)

// collection is a list that is only ever replaced whole or appended to.
// Readers always receive copies.
type collection[T any] struct {
	mtx    sync.RWMutex
	items  []T
	status Status
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make([]T, 0)}
}

func (c *collection[T]) snapshot() []T {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return cloneItems(c.items)
}

// replace swaps in items and returns a copy of them. failure is the
// incident recorded alongside the replacement, if any.
func (c *collection[T]) replace(items []T, at time.Time, failure *Failure) []T {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.items = cloneItems(items)
	c.status = Status{Refreshed: true, LastRefresh: at, LastFailure: failure}
	return cloneItems(c.items)
}

func (c *collection[T]) append(item T) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.items = append(c.items, item)
	return len(c.items)
}

// fail records a refresh that left the items untouched and returns them.
func (c *collection[T]) fail(failure *Failure) []T {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.status.LastFailure = failure
	return cloneItems(c.items)
}

func (c *collection[T]) getStatus() Status {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.status
}

// cloneItems never returns nil so callers can rely on an empty, non-nil list.
func cloneItems[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
