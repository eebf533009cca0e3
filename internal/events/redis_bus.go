package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"guarddog-backend/internal/shared/metrics"
)

const subscriptionBuffer = 64

// RedisBus implements Bus with Redis PUBLISH / PSUBSCRIBE.
type RedisBus struct {
	Client *redis.Client
}

// NewRedisBus constructs a RedisBus.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{Client: client}
}

// Publish sends the event without waiting for any subscriber.
func (b *RedisBus) Publish(ctx context.Context, channel string, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.Client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	metrics.IncEventPublished(string(ev.Type))
	return nil
}

// Subscribe opens a dedicated pub/sub connection for the pattern.
func (b *RedisBus) Subscribe(ctx context.Context, pattern string) (Subscription, error) {
	ps := b.Client.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis psubscribe %s: %w", pattern, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan Message, subscriptionBuffer),
		done: make(chan struct{}),
	}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

var _ Bus = (*RedisBus)(nil)
