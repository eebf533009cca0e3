package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrQueueNotConfigured = errors.New("job queue not configured")
	ErrNoJob              = errors.New("no job available")
	ErrTerminal           = errors.New("job already in a terminal state")
)

// Priority selects one of the two independent lanes.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

const (
	LaneHigh   = "high"
	LaneNormal = "normal"
)

// Lanes lists lanes in drain order.
var Lanes = []Priority{PriorityHigh, PriorityNormal}

// Lane returns the lane name for the priority.
func (p Priority) Lane() string {
	if p == PriorityHigh {
		return LaneHigh
	}
	return LaneNormal
}

// Weight is the numeric priority stored with the job; lower runs first.
func (p Priority) Weight() int {
	if p == PriorityHigh {
		return 1
	}
	return 10
}

func (p Priority) String() string { return p.Lane() }

// ParsePriority maps "high"/"normal" to a Priority.
func ParsePriority(raw string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LaneHigh:
		return PriorityHigh, nil
	case LaneNormal, "":
		return PriorityNormal, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", raw)
	}
}

// State is the job lifecycle: Waiting -> Active -> {Completed | Failed}.
type State int

const (
	StateWaiting State = iota + 1
	StateActive
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// parseState is the single translation point from stored state strings.
func parseState(raw string) (State, error) {
	switch raw {
	case "waiting":
		return StateWaiting, nil
	case "active":
		return StateActive, nil
	case "completed":
		return StateCompleted, nil
	case "failed":
		return StateFailed, nil
	default:
		return 0, fmt.Errorf("unknown job state %q", raw)
	}
}

// Status is the ephemeral, client-facing status kept in the status cache.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Payload is the analysis input attached to a job.
type Payload struct {
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	ProposerAddress string `json:"proposerAddress,omitempty"`
	DAOGovernor     string `json:"daoGovernor,omitempty"`
	ChainID         int64  `json:"chainId,omitempty"`
	Source          string `json:"source,omitempty"`
}

// Job is an analysis job keyed by proposal id.
type Job struct {
	ID           string          `json:"id"`
	ProposalID   string          `json:"proposalId"`
	Priority     Priority        `json:"-"`
	Lane         string          `json:"lane"`
	Weight       int             `json:"weight"`
	State        State           `json:"-"`
	StateName    string          `json:"state"`
	Payload      Payload         `json:"payload"`
	Result       json.RawMessage `json:"result,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	ClaimedAt    *time.Time      `json:"claimedAt,omitempty"`
}

// LaneCounts summarizes one lane for health checks.
type LaneCounts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Health reports per-lane counts.
type Health map[string]LaneCounts
