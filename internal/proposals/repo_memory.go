package proposals

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores proposals in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Proposal
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Proposal)}
}

// Create stores the proposal.
func (r *MemoryRepo) Create(ctx context.Context, p Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return ErrAlreadyExists
	}
	r.byID[p.ID] = p
	return nil
}

// GetByID returns a proposal by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	return p, nil
}

// UpdateStatus sets the proposal status.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p
	return nil
}

// UpdateAnalysis sets status together with the score snapshot.
func (r *MemoryRepo) UpdateAnalysis(ctx context.Context, id string, status Status, score float64, riskLevel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.CompositeRiskScore = &score
	p.RiskLevel = &riskLevel
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p
	return nil
}

// ListByStatus returns proposals in the given status, oldest first.
func (r *MemoryRepo) ListByStatus(ctx context.Context, status Status, limit int) ([]Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Proposal, 0)
	for _, p := range r.byID {
		if p.Status == status {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
