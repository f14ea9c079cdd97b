package bus

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how many undelivered messages a slow subscriber
// can accumulate before new publishes start dropping for it.
const subscriberBuffer = 256

// MemBus is an in-process fanout bus: every Subscribe call gets its own
// buffered channel, and Publish never blocks on a slow reader. It backs
// local development without Redis and the package's own tests.
type MemBus struct {
	mu   sync.RWMutex
	subs map[*memSubscription]struct{}
}

var _ Bus = (*MemBus)(nil)

// NewMemBus returns a ready-to-use in-process Bus.
func NewMemBus() *MemBus {
	return &MemBus{subs: make(map[*memSubscription]struct{})}
}

func (b *MemBus) Publish(ctx context.Context, topic string, payload []byte) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var delivered int64
	for sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- Message{Topic: topic, Payload: payload}:
			delivered++
		default:
			// Buffer full: drop for this subscriber rather than block the publisher.
		}
	}
	return delivered, nil
}

func (b *MemBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	want := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		want[t] = struct{}{}
	}

	sub := &memSubscription{
		bus:    b,
		ch:     make(chan Message, subscriberBuffer),
		topics: want,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

// Ping always succeeds: the in-process bus has no transport to lose.
func (b *MemBus) Ping(ctx context.Context) error {
	return nil
}

func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*memSubscription]struct{})
	return nil
}

type memSubscription struct {
	bus    *MemBus
	ch     chan Message
	topics map[string]struct{}

	closeOnce sync.Once
}

func (s *memSubscription) wants(topic string) bool {
	_, ok := s.topics[topic]
	return ok
}

func (s *memSubscription) C() <-chan Message { return s.ch }

func (s *memSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
	return nil
}
