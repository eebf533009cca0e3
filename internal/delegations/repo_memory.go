package delegations

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo stores delegations in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byKey map[Key]Delegation
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byKey: make(map[Key]Delegation)}
}

// ListActive returns ACTIVE delegations for the governor, oldest first.
func (r *MemoryRepo) ListActive(ctx context.Context, daoGovernor string, chainID int64) ([]Delegation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	governor := strings.ToLower(strings.TrimSpace(daoGovernor))
	r.mu.RLock()
	out := make([]Delegation, 0)
	for k, d := range r.byKey {
		if k.DAOGovernor == governor && k.ChainID == chainID && d.Status == StatusActive {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetByKey returns the delegation for key regardless of status.
func (r *MemoryRepo) GetByKey(ctx context.Context, key Key) (Delegation, error) {
	if err := ctx.Err(); err != nil {
		return Delegation{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[key.Normalized()]
	if !ok {
		return Delegation{}, ErrNotFound
	}
	return d, nil
}

// Upsert creates or reactivates a delegation with new settings.
func (r *MemoryRepo) Upsert(ctx context.Context, d Delegation) (Delegation, error) {
	if err := ctx.Err(); err != nil {
		return Delegation{}, err
	}
	if !ValidThreshold(d.RiskThreshold) {
		return Delegation{}, ErrInvalidThreshold
	}
	key := d.Key().Normalized()
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[key]; ok {
		existing.RiskThreshold = d.RiskThreshold
		existing.RequiresApproval = d.RequiresApproval
		existing.Status = StatusActive
		existing.UpdatedAt = now
		r.byKey[key] = existing
		return existing, nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = StatusActive
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	r.byKey[key] = d
	return d, nil
}

// Revoke marks the delegation REVOKED. It is never deleted.
func (r *MemoryRepo) Revoke(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := key.Normalized()
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byKey[k]
	if !ok {
		return ErrNotFound
	}
	d.Status = StatusRevoked
	d.UpdatedAt = time.Now().UTC()
	r.byKey[k] = d
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
