package events

import (
	"context"
	"fmt"
	"path"
	"sync"

	"guarddog-backend/internal/shared/metrics"
)

// MemoryBus is an in-process Bus used in tests and single-process dev setups.
// A subscriber whose buffer is full misses the event.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]struct{}
	buffer int
}

// NewMemoryBus constructs a MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[*memorySubscription]struct{}),
		buffer: subscriptionBuffer,
	}
}

// Publish fans the event out to every matching subscriber without blocking.
func (b *MemoryBus) Publish(ctx context.Context, channel string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	b.PublishRaw(channel, payload)
	metrics.IncEventPublished(string(ev.Type))
	return nil
}

// PublishRaw delivers an arbitrary payload, including ones that are not valid events.
func (b *MemoryBus) PublishRaw(channel string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		ok, err := path.Match(sub.pattern, channel)
		if err != nil || !ok {
			continue
		}
		select {
		case sub.ch <- Message{Channel: channel, Payload: payload}:
		default:
		}
	}
}

// Subscribe registers a pattern subscription.
func (b *MemoryBus) Subscribe(ctx context.Context, pattern string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	sub := &memorySubscription{
		bus:     b,
		pattern: pattern,
		ch:      make(chan Message, b.buffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type memorySubscription struct {
	bus     *MemoryBus
	pattern string
	ch      chan Message
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.ch)
		s.bus.mu.Unlock()
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)
