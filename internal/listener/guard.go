package listener

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultGuardTTL = 24 * time.Hour

// CompletionGuard remembers which completions were already acted on so a
// redelivered complete event cannot trigger a second voting run.
type CompletionGuard interface {
	// Claim returns true the first time it sees (proposalID, jobID).
	Claim(ctx context.Context, proposalID, jobID string) (bool, error)
	// Release forgets a claim whose processing did not get far enough to vote.
	Release(ctx context.Context, proposalID, jobID string) error
}

func guardKey(proposalID, jobID string) string {
	return "completion:" + proposalID + ":" + jobID
}

// RedisGuard keeps claims as SET NX keys with a TTL.
type RedisGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisGuard constructs a RedisGuard. A non-positive ttl uses 24h.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &RedisGuard{Client: client, TTL: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, proposalID, jobID string) (bool, error) {
	return g.Client.SetNX(ctx, guardKey(proposalID, jobID), time.Now().UTC().Format(time.RFC3339), g.TTL).Result()
}

func (g *RedisGuard) Release(ctx context.Context, proposalID, jobID string) error {
	return g.Client.Del(ctx, guardKey(proposalID, jobID)).Err()
}

// MemoryGuard is an in-process CompletionGuard.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryGuard constructs a MemoryGuard. A non-positive ttl uses 24h.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &MemoryGuard{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(ctx context.Context, proposalID, jobID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.seen {
		if now.After(exp) {
			delete(g.seen, k)
		}
	}
	key := guardKey(proposalID, jobID)
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, proposalID, jobID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, guardKey(proposalID, jobID))
	return nil
}
