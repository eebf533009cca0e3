package delegations

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidThreshold = errors.New("risk threshold must be between 0 and 100")
)

// Repo defines persistence operations for delegations.
type Repo interface {
	// ListActive returns ACTIVE delegations for a governor, matching the governor case-insensitively.
	ListActive(ctx context.Context, daoGovernor string, chainID int64) ([]Delegation, error)
	GetByKey(ctx context.Context, key Key) (Delegation, error)
	Upsert(ctx context.Context, d Delegation) (Delegation, error)
	Revoke(ctx context.Context, key Key) error
}

// ValidThreshold reports whether t is within 0..100.
func ValidThreshold(t float64) bool {
	return t >= 0 && t <= 100
}
