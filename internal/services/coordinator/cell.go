package coordinator

import "sync"

// Cell is an observable value. Watchers see the latest value only: a
// watcher that falls behind skips to the newest.
type Cell[T any] struct {
	mu       sync.RWMutex
	v        T
	watchers map[int]chan T
	next     int
}

func newCell[T any](v T) *Cell[T] {
	return &Cell[T]{v: v, watchers: make(map[int]chan T)}
}

// Value returns the current value
func (c *Cell[T]) Value() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Watch returns a channel that already holds the current value and receives
// every later one. The returned func stops the watch and closes the channel.
func (c *Cell[T]) Watch() (<-chan T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan T, 1)
	ch <- c.v
	id := c.next
	c.next++
	c.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.watchers, id)
			close(ch)
		})
	}
}

func (c *Cell[T]) set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = v
	for _, ch := range c.watchers {
		// Only set sends, and it holds c.mu: after the drain there is room.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
