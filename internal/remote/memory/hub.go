package memory

import (
	"context"
	"sync"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
)

// Hub fans published envelopes out to every subscription on the same sync
// identity, including the publisher's own, as real backends do.
// Each subscription delivers on its own goroutine, in publish order.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

var (
	_ remote.Channel   = (*Hub)(nil)
	_ remote.Publisher = (*Hub)(nil)
)

// NewHub returns a Hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[*subscription]struct{}{}}
}

type subscription struct {
	hub    *Hub
	syncID string
	queue  chan domain.Envelope
	done   chan struct{}
	once   sync.Once
}

// Subscribe registers fn for syncID.
func (h *Hub) Subscribe(_ context.Context, syncID string, fn func(domain.Envelope)) (remote.Subscription, error) {
	s := &subscription{
		hub:    h,
		syncID: syncID,
		queue:  make(chan domain.Envelope, 64),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	if h.subs[syncID] == nil {
		h.subs[syncID] = map[*subscription]struct{}{}
	}
	h.subs[syncID][s] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer close(s.done)
		for env := range s.queue {
			fn(env)
		}
	}()
	return s, nil
}

// Publish delivers env to every subscriber of syncID.
func (h *Hub) Publish(_ context.Context, syncID string, env domain.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[syncID] {
		// Deliver a private copy, as a decoded network payload would be.
		s.queue <- domain.Envelope{Stamp: env.Stamp, UpdatedAt: env.UpdatedAt, Document: env.Document.Clone()}
	}
	return nil
}

// Deliver injects env into syncID's subscribers as if another device had
// written it, without touching any Store.
func (h *Hub) Deliver(syncID string, env domain.Envelope) {
	_ = h.Publish(context.Background(), syncID, env)
}

// Subscribers reports how many live subscriptions syncID has.
func (h *Hub) Subscribers(syncID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[syncID])
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs[s.syncID], s)
		close(s.queue)
		s.hub.mu.Unlock()
		<-s.done
	})
}
