package voting

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAuditRepo is an in-memory AuditRepo.
type MemoryAuditRepo struct {
	mu      sync.RWMutex
	records []AuditRecord
}

// NewMemoryAuditRepo constructs a MemoryAuditRepo.
func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{}
}

func (r *MemoryAuditRepo) InsertBatch(ctx context.Context, records []AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		r.records = append(r.records, rec)
	}
	return nil
}

func (r *MemoryAuditRepo) StatsForProposal(ctx context.Context, proposalID string) (VoteStats, error) {
	if err := ctx.Err(); err != nil {
		return VoteStats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := VoteStats{ProposalID: proposalID}
	for _, rec := range r.records {
		if rec.ProposalID == proposalID {
			tally(&stats, rec)
		}
	}
	return stats, nil
}

func (r *MemoryAuditRepo) HasVoted(ctx context.Context, delegatorAddress, proposalID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ProposalID == proposalID && rec.Success && strings.EqualFold(rec.DelegatorAddress, delegatorAddress) {
			return true, nil
		}
	}
	return false, nil
}

// Records returns a copy of everything written so far.
func (r *MemoryAuditRepo) Records() []AuditRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AuditRecord, len(r.records))
	copy(out, r.records)
	return out
}
