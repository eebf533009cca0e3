package proposals

import (
	"strings"
	"time"
)

// Status is the governance state of a proposal. It is the source of truth;
// job and result caches are projections of it.
type Status string

const (
	StatusPendingAnalysis  Status = "PENDING_ANALYSIS"
	StatusProcessing       Status = "PROCESSING"
	StatusNeedsReview      Status = "NEEDS_REVIEW"
	StatusAutoApproved     Status = "AUTO_APPROVED"
	StatusAutoRejected     Status = "AUTO_REJECTED"
	StatusManuallyApproved Status = "MANUALLY_APPROVED"
	StatusManuallyRejected Status = "MANUALLY_REJECTED"
	StatusExecuted         Status = "EXECUTED"
	StatusExpired          Status = "EXPIRED"
)

// Statuses lists every externally visible status.
var Statuses = []Status{
	StatusPendingAnalysis,
	StatusProcessing,
	StatusNeedsReview,
	StatusAutoApproved,
	StatusAutoRejected,
	StatusManuallyApproved,
	StatusManuallyRejected,
	StatusExecuted,
	StatusExpired,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// StatusForRecommendation maps an analysis recommendation to the proposal status.
// Anything other than APPROVE or REJECT needs a human.
func StatusForRecommendation(recommendation string) Status {
	switch strings.ToUpper(strings.TrimSpace(recommendation)) {
	case "APPROVE":
		return StatusAutoApproved
	case "REJECT":
		return StatusAutoRejected
	default:
		return StatusNeedsReview
	}
}

// Proposal is a treasury proposal detected on a DAO governor.
type Proposal struct {
	ID                 string    `json:"id"`
	OnchainProposalID  string    `json:"onchainProposalId"`
	DAOGovernor        string    `json:"daoGovernor"`
	ChainID            int64     `json:"chainId"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	ProposerAddress    string    `json:"proposerAddress"`
	Status             Status    `json:"status"`
	CompositeRiskScore *float64  `json:"compositeRiskScore,omitempty"`
	RiskLevel          *string   `json:"riskLevel,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Text is the proposal body sent for scoring.
func (p Proposal) Text() string {
	title := strings.TrimSpace(p.Title)
	desc := strings.TrimSpace(p.Description)
	switch {
	case title == "":
		return desc
	case desc == "":
		return title
	default:
		return title + "\n\n" + desc
	}
}
