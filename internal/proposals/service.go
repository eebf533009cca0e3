package proposals

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"guarddog-backend/internal/intelligence"
	"guarddog-backend/internal/queue"
)

// ErrValidation marks bad caller input.
var ErrValidation = errors.New("validation error")

// Enqueuer submits analysis jobs.
type Enqueuer interface {
	AddJob(ctx context.Context, proposalID string, payload queue.Payload, priority queue.Priority) (queue.Job, error)
}

// Simulator scores drafts without persisting anything.
type Simulator interface {
	Simulate(ctx context.Context, draftText string) (intelligence.SimulateResponse, error)
}

// Service contains business logic for proposals.
type Service struct {
	Repo      Repo
	Queue     Enqueuer
	Simulator Simulator
}

// CreateInput carries a newly detected proposal.
type CreateInput struct {
	ID                string `json:"id"`
	OnchainProposalID string `json:"onchainProposalId"`
	DAOGovernor       string `json:"daoGovernor"`
	ChainID           int64  `json:"chainId"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	ProposerAddress   string `json:"proposerAddress"`
}

// Create registers a proposal in PENDING_ANALYSIS.
func (s *Service) Create(ctx context.Context, in CreateInput) (Proposal, error) {
	if strings.TrimSpace(in.DAOGovernor) == "" || in.ChainID <= 0 {
		return Proposal{}, ErrValidation
	}
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Description) == "" {
		return Proposal{}, ErrValidation
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	p := Proposal{
		ID:                id,
		OnchainProposalID: strings.TrimSpace(in.OnchainProposalID),
		DAOGovernor:       strings.TrimSpace(in.DAOGovernor),
		ChainID:           in.ChainID,
		Title:             in.Title,
		Description:       in.Description,
		ProposerAddress:   strings.TrimSpace(in.ProposerAddress),
		Status:            StatusPendingAnalysis,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// Get returns a proposal by ID.
func (s *Service) Get(ctx context.Context, id string) (Proposal, error) {
	return s.Repo.GetByID(ctx, id)
}

// RequestAnalysis enqueues the proposal for scoring on the given lane.
func (s *Service) RequestAnalysis(ctx context.Context, id string, priority queue.Priority, source string) (queue.Job, error) {
	if s.Queue == nil {
		return queue.Job{}, queue.ErrQueueNotConfigured
	}
	p, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return queue.Job{}, err
	}
	return s.Queue.AddJob(ctx, p.ID, PayloadFor(p, source), priority)
}

// PayloadFor builds the job payload for a proposal.
func PayloadFor(p Proposal, source string) queue.Payload {
	return queue.Payload{
		Title:           p.Title,
		Description:     p.Description,
		ProposerAddress: p.ProposerAddress,
		DAOGovernor:     p.DAOGovernor,
		ChainID:         p.ChainID,
		Source:          source,
	}
}

// Simulate runs the stateless pre-submission check.
func (s *Service) Simulate(ctx context.Context, draftText string) (intelligence.SimulateResponse, error) {
	if strings.TrimSpace(draftText) == "" {
		return intelligence.SimulateResponse{}, ErrValidation
	}
	if s.Simulator == nil {
		return intelligence.SimulateResponse{}, errors.New("simulator not configured")
	}
	return s.Simulator.Simulate(ctx, draftText)
}
