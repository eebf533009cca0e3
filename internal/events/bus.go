package events

import "context"

// Message is a raw payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a live pattern subscription. Messages is closed after Close.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus publishes lifecycle events and hands out pattern subscriptions.
// Delivery is at-most-once: a subscriber not attached at publish time never sees the event.
type Bus interface {
	Publish(ctx context.Context, channel string, ev Event) error
	Subscribe(ctx context.Context, pattern string) (Subscription, error)
}
