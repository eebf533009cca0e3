package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Analysis)}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, a Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) GetLatestCompleted(ctx context.Context, proposalID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		latest Analysis
		found  bool
	)
	for _, a := range r.byID {
		if a.ProposalID != proposalID || a.Status != StatusCompleted || a.CompletedAt == nil {
			continue
		}
		if !found || a.CompletedAt.After(*latest.CompletedAt) {
			latest = a
			found = true
		}
	}
	if !found {
		return Analysis{}, ErrNotFound
	}
	return latest, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id, status string, errorMessage *string, completedAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	if errorMessage != nil {
		a.ErrorMessage = errorMessage
	}
	if completedAt != nil {
		a.CompletedAt = completedAt
	}
	r.byID[id] = a
	return nil
}

func (r *MemoryRepo) UpdateResult(ctx context.Context, id string, out Outcome, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	score := out.CompositeScore
	level := out.RiskLevel
	rec := out.Recommendation
	a.Status = StatusCompleted
	a.CompositeScore = &score
	a.RiskLevel = &level
	a.Recommendation = &rec
	a.AgentBreakdown = out.AgentBreakdown
	if out.RawKey != "" {
		key := out.RawKey
		a.RawKey = &key
	}
	a.CompletedAt = &completedAt
	r.byID[id] = a
	return nil
}
