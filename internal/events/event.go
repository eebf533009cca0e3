package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Type names a stage of the analysis lifecycle.
type Type string

const (
	TypeQueued     Type = "queued"
	TypeProcessing Type = "processing"
	TypeProgress   Type = "progress"
	TypeComplete   Type = "complete"
	TypeFailed     Type = "failed"
)

const channelPrefix = "events:"

// AllProposalsPattern matches the channel of every proposal.
const AllProposalsPattern = channelPrefix + "*"

// Channel returns the per-proposal channel name.
func Channel(proposalID string) string {
	return channelPrefix + proposalID
}

// ProposalIDFromChannel extracts the proposal id from a channel name.
func ProposalIDFromChannel(channel string) string {
	return strings.TrimPrefix(channel, channelPrefix)
}

// Result is the analysis outcome carried by a complete event.
type Result struct {
	CompositeScore *float64 `json:"compositeScore,omitempty"`
	RiskLevel      string   `json:"riskLevel,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Valid reports whether every result field is present.
func (r *Result) Valid() bool {
	if r == nil || r.CompositeScore == nil {
		return false
	}
	return strings.TrimSpace(r.RiskLevel) != "" && strings.TrimSpace(r.Recommendation) != ""
}

// Event is the JSON message published on a proposal channel.
type Event struct {
	Type             Type    `json:"type"`
	JobID            string  `json:"jobId"`
	ProposalID       string  `json:"proposalId,omitempty"`
	Timestamp        int64   `json:"timestamp"`
	Progress         *int    `json:"progress,omitempty"`
	Result           *Result `json:"result,omitempty"`
	ProcessingTimeMs *int64  `json:"processingTimeMs,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// New builds an event stamped with the current time in milliseconds.
func New(t Type, jobID, proposalID string) Event {
	return Event{
		Type:       t,
		JobID:      jobID,
		ProposalID: proposalID,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Completed builds a complete event.
func Completed(jobID, proposalID string, score float64, riskLevel, recommendation string, processingTime time.Duration) Event {
	ev := New(TypeComplete, jobID, proposalID)
	ev.Result = &Result{CompositeScore: &score, RiskLevel: riskLevel, Recommendation: recommendation}
	ms := processingTime.Milliseconds()
	ev.ProcessingTimeMs = &ms
	return ev
}

// Failed builds a failed event.
func Failed(jobID, proposalID, reason string) Event {
	ev := New(TypeFailed, jobID, proposalID)
	ev.Error = reason
	return ev
}

var errMissingType = errors.New("event type missing")

// Encode returns the JSON representation of an event.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses a channel payload into an Event.
func Decode(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(string(ev.Type)) == "" {
		return Event{}, errMissingType
	}
	return ev, nil
}
