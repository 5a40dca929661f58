// Package signal implements small observable value cells used for the
// session state: a Cell holds a value and notifies subscribers on change,
// Derive projects a Cell through a pure function.
//
// # What this package must NOT do
//
//   - Call subscribers while holding the cell lock.
//   - Import authclient (no import cycles).
package signal

import "sync"

// Cell is a concurrency-safe observable value.
type Cell[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID uint64
	subs   map[uint64]func(T)
	order  []uint64
}

// NewCell returns a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, subs: make(map[uint64]func(T))}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value and notifies subscribers in subscription order on
// the calling goroutine.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	fns := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers fn for future changes. The returned function removes
// the subscription and is safe to call more than once.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	c.order = append(c.order, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			for i, v := range c.order {
				if v == id {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (c *Cell[T]) snapshotLocked() []func(T) {
	fns := make([]func(T), 0, len(c.order))
	for _, id := range c.order {
		fns = append(fns, c.subs[id])
	}
	return fns
}

// Computed is a read-only value recomputed from a source cell.
type Computed[S any, T comparable] struct {
	source *Cell[S]
	fn     func(S) T
}

// Derive returns a Computed view of source through fn. fn must be pure.
func Derive[S any, T comparable](source *Cell[S], fn func(S) T) *Computed[S, T] {
	return &Computed[S, T]{source: source, fn: fn}
}

// Get recomputes the value from the source's current state.
func (c *Computed[S, T]) Get() T {
	return c.fn(c.source.Get())
}

// Subscribe calls fn with the recomputed value whenever it differs from the
// last value this subscription saw. The first comparison is against the value
// at subscription time.
func (c *Computed[S, T]) Subscribe(fn func(T)) func() {
	var mu sync.Mutex
	last := c.Get()
	return c.source.Subscribe(func(s S) {
		v := c.fn(s)
		mu.Lock()
		changed := v != last
		last = v
		mu.Unlock()
		if changed {
			fn(v)
		}
	})
}
