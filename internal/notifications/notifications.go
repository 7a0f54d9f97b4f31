// Package notifications implements the two append-only observers: a live,
// in-memory event fan-out and a durable admin log.
package notifications

import (
	"sync"

	"github.com/justin13888/beam/internal/models"
)

const (
	ringCapacity       = 1000
	subscriberCapacity = 256
)

// Service is the in-memory, best-effort event observer. Publish never
// blocks: a lagging subscriber channel is dropped from, not waited on.
type Service interface {
	Publish(event models.AdminEvent)
	Subscribe() (ch <-chan models.AdminEvent, cancel func())
	RecentEvents(limit int) []models.AdminEvent
}

// LocalService is the production Service: a bounded ring buffer guarded by
// a reader-biased lock, plus a set of subscriber channels.
type LocalService struct {
	mu          sync.RWMutex
	ring        []models.AdminEvent
	subscribers map[chan models.AdminEvent]struct{}
}

func NewLocalService() *LocalService {
	return &LocalService{
		ring:        make([]models.AdminEvent, 0, ringCapacity),
		subscribers: make(map[chan models.AdminEvent]struct{}),
	}
}

func (s *LocalService) Publish(event models.AdminEvent) {
	s.mu.Lock()
	if len(s.ring) >= ringCapacity {
		s.ring = s.ring[1:]
	}
	s.ring = append(s.ring, event)
	subs := make([]chan models.AdminEvent, 0, len(s.subscribers))
	for ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Lagging subscriber misses the event; publisher never blocks.
		}
	}
}

func (s *LocalService) Subscribe() (<-chan models.AdminEvent, func()) {
	ch := make(chan models.AdminEvent, subscriberCapacity)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *LocalService) RecentEvents(limit int) []models.AdminEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.ring) {
		limit = len(s.ring)
	}
	out := make([]models.AdminEvent, limit)
	copy(out, s.ring[len(s.ring)-limit:])
	return out
}

// InMemoryService is the test double: like LocalService but also records
// every published event verbatim for assertions.
type InMemoryService struct {
	*LocalService
	mu        sync.Mutex
	Published []models.AdminEvent
}

func NewInMemoryService() *InMemoryService {
	return &InMemoryService{LocalService: NewLocalService()}
}

func (s *InMemoryService) Publish(event models.AdminEvent) {
	s.mu.Lock()
	s.Published = append(s.Published, event)
	s.mu.Unlock()
	s.LocalService.Publish(event)
}
