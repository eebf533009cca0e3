package voting

import (
	"strings"

	"guarddog-backend/internal/delegations"
)

// DefaultReviewSafeScore is the REVIEW boundary below which auto votes go FOR.
// It is independent of the approve/reject routing thresholds.
const DefaultReviewSafeScore = 50

// DetermineVoteSupport maps a recommendation and score to a vote.
func DetermineVoteSupport(recommendation string, score, reviewSafeScore float64) VoteType {
	switch strings.ToUpper(strings.TrimSpace(recommendation)) {
	case "APPROVE":
		return VoteFor
	case "REJECT":
		return VoteAgainst
	default:
		if score < reviewSafeScore {
			return VoteFor
		}
		return VoteAbstain
	}
}

// IsEligible reports whether a delegation may be auto-voted at this score.
// Approval-gated delegations never are.
func IsEligible(d delegations.Delegation, score float64) bool {
	if d.RequiresApproval {
		return false
	}
	return score <= d.RiskThreshold
}

var errorPatterns = []struct {
	code     ErrorCode
	patterns []string
}{
	{ErrAlreadyVoted, []string{"alreadyvoted", "already voted", "already_voted", "vote already cast"}},
	{ErrNotDelegated, []string{"notdelegated", "not delegated", "not_delegated", "no delegation"}},
	{ErrProposalNotActive, []string{"proposalnotactive", "proposal not active", "not active", "voting closed", "voting is closed"}},
}

// ParseVoteError classifies revert or RPC error text.
func ParseVoteError(message string) ErrorCode {
	msg := strings.ToLower(message)
	for _, ep := range errorPatterns {
		for _, p := range ep.patterns {
			if strings.Contains(msg, p) {
				return ep.code
			}
		}
	}
	return ErrUnknown
}
