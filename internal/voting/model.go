package voting

import "time"

// VoteType is the support value cast on-chain.
type VoteType string

const (
	VoteFor     VoteType = "FOR"
	VoteAgainst VoteType = "AGAINST"
	VoteAbstain VoteType = "ABSTAIN"
)

// Support is the governor's numeric encoding: 0 against, 1 for, 2 abstain.
func (v VoteType) Support() uint8 {
	switch v {
	case VoteAgainst:
		return 0
	case VoteFor:
		return 1
	default:
		return 2
	}
}

// ErrorCode classifies a failed on-chain vote.
type ErrorCode string

const (
	ErrAlreadyVoted      ErrorCode = "ALREADY_VOTED"
	ErrNotDelegated      ErrorCode = "NOT_DELEGATED"
	ErrProposalNotActive ErrorCode = "PROPOSAL_NOT_ACTIVE"
	ErrUnknown           ErrorCode = "UNKNOWN_ERROR"
)

// Retryable reports whether retrying the same vote could succeed.
func (c ErrorCode) Retryable() bool {
	return c == ErrUnknown
}

// Request is one run of the orchestrator for a scored proposal.
type Request struct {
	ProposalID         string
	OnchainProposalID  string
	DAOGovernor        string
	ChainID            int64
	CompositeRiskScore float64
	RiskLevel          string
	Recommendation     string
}

// VoteResult is the outcome of one attempted vote.
type VoteResult struct {
	DelegationID     string    `json:"delegationId"`
	DelegatorAddress string    `json:"delegatorAddress"`
	VoteType         VoteType  `json:"voteType"`
	Success          bool      `json:"success"`
	TxHash           string    `json:"txHash,omitempty"`
	ErrorCode        ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
}

// Result summarizes a run.
type Result struct {
	TotalDelegations    int          `json:"totalDelegations"`
	EligibleDelegations int          `json:"eligibleDelegations"`
	VotesAttempted      int          `json:"votesAttempted"`
	VotesSuccessful     int          `json:"votesSuccessful"`
	VotesFailed         int          `json:"votesFailed"`
	BatchTxHash         string       `json:"batchTxHash,omitempty"`
	PerVoteResults      []VoteResult `json:"perVoteResults"`
}

// AuditRecord is the append-only trail of one attempted vote.
type AuditRecord struct {
	ID               string    `json:"id"`
	ProposalID       string    `json:"proposalId"`
	DelegationID     string    `json:"delegationId"`
	DelegatorAddress string    `json:"delegatorAddress"`
	VoteType         VoteType  `json:"voteType"`
	RiskScore        float64   `json:"riskScore"`
	WasAutoVote      bool      `json:"wasAutoVote"`
	TxHash           *string   `json:"txHash,omitempty"`
	Success          bool      `json:"success"`
	ErrorCode        *string   `json:"errorCode,omitempty"`
	ErrorMessage     *string   `json:"errorMessage,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// VoteStats aggregates the audit trail for a proposal. Per-type counts include successful votes only.
type VoteStats struct {
	ProposalID string `json:"proposalId"`
	Attempted  int    `json:"attempted"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	For        int    `json:"for"`
	Against    int    `json:"against"`
	Abstain    int    `json:"abstain"`
	AutoVotes  int    `json:"autoVotes"`
}
