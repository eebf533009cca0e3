package voting

import "context"

// AuditRepo persists the append-only vote trail.
type AuditRepo interface {
	InsertBatch(ctx context.Context, records []AuditRecord) error
	StatsForProposal(ctx context.Context, proposalID string) (VoteStats, error)
	// HasVoted reports whether a successful vote exists for the delegator, matched case-insensitively.
	HasVoted(ctx context.Context, delegatorAddress, proposalID string) (bool, error)
}

func tally(stats *VoteStats, r AuditRecord) {
	stats.Attempted++
	if r.WasAutoVote {
		stats.AutoVotes++
	}
	if !r.Success {
		stats.Failed++
		return
	}
	stats.Successful++
	switch r.VoteType {
	case VoteFor:
		stats.For++
	case VoteAgainst:
		stats.Against++
	case VoteAbstain:
		stats.Abstain++
	}
}
