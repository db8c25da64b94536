package notes

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"viterbi-notes/internal/logger"

	"github.com/oklog/ulid/v2"
)

// Subscriber receives full collection snapshots. Snapshots are shared
// between subscribers and must not be modified.
type Subscriber struct {
	ID          ulid.ULID
	ConnectedAt time.Time
	Ch          chan []Note
	Done        chan struct{}
	filter      func(Note) bool
}

// Hub fans every published snapshot out to all attached subscribers
type Hub struct {
	mu          sync.RWMutex
	subscribers map[ulid.ULID]*Subscriber
	bufferSize  int
	coalesced   uint64
}

// NewHub creates a hub whose subscriber channels hold up to bufferSize
// pending snapshots. When a channel is full the oldest pending snapshot is
// discarded, so the newest one is always delivered.
func NewHub(bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Hub{
		subscribers: make(map[ulid.ULID]*Subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscribe attaches a subscriber whose channel already holds initial.
// A nil filter keeps every note. The returned func detaches the subscriber.
//
// Callers publishing under a lock must subscribe under the same lock, so
// that initial can never be newer than a snapshot published afterwards.
func (h *Hub) Subscribe(initial []Note, filter func(Note) bool) (*Subscriber, func()) {
	sub := &Subscriber{
		ID:          ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader),
		ConnectedAt: time.Now(),
		Ch:          make(chan []Note, h.bufferSize),
		Done:        make(chan struct{}),
		filter:      filter,
	}

	log := logger.L()
	if log != nil && log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("subscribing to notes", "sub_id", sub.ID.String())
	}

	sub.Ch <- sub.view(initial)

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { h.Unsubscribe(sub.ID) })
	}
	return sub, cancel
}

// SubscribeContext is Subscribe with the subscription also released when ctx ends.
func (h *Hub) SubscribeContext(ctx context.Context, initial []Note, filter func(Note) bool) (*Subscriber, func()) {
	sub, cancel := h.Subscribe(initial, filter)
	stop := context.AfterFunc(ctx, cancel)
	return sub, func() {
		stop()
		cancel()
	}
}

// Unsubscribe removes a subscriber from the hub and closes its channels
func (h *Hub) Unsubscribe(id ulid.ULID) {
	log := logger.L()
	if log != nil && log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("unsubscribing from notes", "sub_id", id.String())
	}

	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		close(sub.Ch)
		close(sub.Done)
	}
}

// Publish delivers snapshot to every subscriber without blocking
func (h *Hub) Publish(snapshot []Note) {
	log := logger.L()
	if log != nil && log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("publishing notes snapshot", "notes", len(snapshot))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		sendLatest(sub.Ch, sub.view(snapshot), func() {
			atomic.AddUint64(&h.coalesced, 1)
		})
	}
}

// GetSubscriberCount returns the current number of subscribers
func (h *Hub) GetSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Stats returns current counters for observability / tests.
func (h *Hub) Stats() (subscribers int, coalesced uint64) {
	return h.GetSubscriberCount(), atomic.LoadUint64(&h.coalesced)
}

func (s *Subscriber) view(snapshot []Note) []Note {
	if s.filter == nil {
		return snapshot
	}
	return Filter(snapshot, s.filter)
}

// sendLatest is the only place that can decide to discard a snapshot.
// It never discards v itself.
func sendLatest(ch chan []Note, v []Note, onCoalesce func()) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
			onCoalesce()
		default:
		}
	}
}
