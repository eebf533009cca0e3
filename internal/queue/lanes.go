package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Delivery is a message taken from a lane. Ack removes it from the transport.
type Delivery struct {
	Message Message
	Ack     func(ctx context.Context) error
}

// LaneTransport moves job messages through the high and normal lanes.
// Pop drains the high lane before the normal lane and returns ErrNoJob when idle.
type LaneTransport interface {
	Push(ctx context.Context, msg Message) error
	Pop(ctx context.Context) (Delivery, error)
}

const defaultPopTimeout = 5 * time.Second

func laneListKey(lane string) string { return "lane:" + lane }

// RedisLanes keeps one Redis list per lane.
type RedisLanes struct {
	Client     *redis.Client
	PopTimeout time.Duration
}

// NewRedisLanes constructs a RedisLanes transport.
func NewRedisLanes(client *redis.Client) *RedisLanes {
	return &RedisLanes{Client: client, PopTimeout: defaultPopTimeout}
}

// Push appends the message to its lane.
func (l *RedisLanes) Push(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode lane message: %w", err)
	}
	if err := l.Client.LPush(ctx, laneListKey(msg.Lane), payload).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", msg.Lane, err)
	}
	return nil
}

// Pop blocks until a message is available. BRPOP checks keys in order, so the high lane wins.
func (l *RedisLanes) Pop(ctx context.Context) (Delivery, error) {
	timeout := l.PopTimeout
	if timeout <= 0 {
		timeout = defaultPopTimeout
	}
	res, err := l.Client.BRPop(ctx, timeout, laneListKey(LaneHigh), laneListKey(LaneNormal)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Delivery{}, ErrNoJob
		}
		return Delivery{}, fmt.Errorf("redis brpop: %w", err)
	}
	if len(res) != 2 {
		return Delivery{}, fmt.Errorf("redis brpop: unexpected reply %v", res)
	}
	msg, err := DecodeMessage([]byte(res[1]))
	if err != nil {
		return Delivery{}, fmt.Errorf("decode lane message: %w", err)
	}
	return Delivery{
		Message: msg,
		Ack:     func(context.Context) error { return nil },
	}, nil
}

// Len returns the number of messages waiting in a lane.
func (l *RedisLanes) Len(ctx context.Context, lane string) (int64, error) {
	return l.Client.LLen(ctx, laneListKey(lane)).Result()
}

var _ LaneTransport = (*RedisLanes)(nil)
