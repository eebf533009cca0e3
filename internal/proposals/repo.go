package proposals

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("proposal already exists")
)

// Repo defines persistence operations for proposals.
type Repo interface {
	Create(ctx context.Context, p Proposal) error
	GetByID(ctx context.Context, id string) (Proposal, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateAnalysis(ctx context.Context, id string, status Status, score float64, riskLevel string) error
	ListByStatus(ctx context.Context, status Status, limit int) ([]Proposal, error)
}
