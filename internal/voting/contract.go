package voting

import "context"

// PendingTx is a submitted transaction awaiting confirmation.
type PendingTx interface {
	// Wait blocks until the transaction is mined and returns its hash.
	// A reverted transaction is an error.
	Wait(ctx context.Context) (string, error)
}

// Contract is the on-chain voting boundary.
type Contract interface {
	// Ready reports whether both the contract handle and the signer are usable.
	Ready() bool
	CastVote(ctx context.Context, proposalID string, support VoteType, riskScore uint64) (PendingTx, error)
	BatchCastVotes(ctx context.Context, proposalID string, delegators []string, supports []VoteType, riskScores []uint64) (PendingTx, error)
}
