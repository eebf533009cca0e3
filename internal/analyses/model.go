package analyses

import (
	"encoding/json"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis is one scoring run for a proposal.
type Analysis struct {
	ID             string          `json:"id"`
	ProposalID     string          `json:"proposalId"`
	JobID          string          `json:"jobId"`
	Status         string          `json:"status"`
	CompositeScore *float64        `json:"compositeScore,omitempty"`
	RiskLevel      *string         `json:"riskLevel,omitempty"`
	Recommendation *string         `json:"recommendation,omitempty"`
	AgentBreakdown json.RawMessage `json:"agentBreakdown,omitempty"`
	RawKey         *string         `json:"-"`
	ErrorMessage   *string         `json:"errorMessage,omitempty"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Outcome is the scored verdict written when an analysis completes.
type Outcome struct {
	CompositeScore float64
	RiskLevel      string
	Recommendation string
	AgentBreakdown json.RawMessage
	RawKey         string
}

// Result is the terminal payload cached for read-only callers and stored on the job.
type Result struct {
	AnalysisID       string          `json:"analysisId"`
	ProposalID       string          `json:"proposalId"`
	JobID            string          `json:"jobId"`
	CompositeScore   float64         `json:"compositeScore"`
	RiskLevel        string          `json:"riskLevel"`
	Recommendation   string          `json:"recommendation"`
	AgentBreakdown   json.RawMessage `json:"agentBreakdown,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	CompletedAt      time.Time       `json:"completedAt"`
}
