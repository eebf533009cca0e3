package analyses

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, a Analysis) error
	GetByID(ctx context.Context, id string) (Analysis, error)
	// GetLatestCompleted returns the most recently completed analysis for a proposal.
	GetLatestCompleted(ctx context.Context, proposalID string) (Analysis, error)
	UpdateStatus(ctx context.Context, id, status string, errorMessage *string, completedAt *time.Time) error
	UpdateResult(ctx context.Context, id string, out Outcome, completedAt time.Time) error
}
