package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedMessage marks a lane payload that can never be processed.
var ErrMalformedMessage = errors.New("malformed lane message")

// Message is the payload carried by a lane transport. The job state itself
// lives in the job store; the message only points at it.
type Message struct {
	JobID      string `json:"jobId"`
	ProposalID string `json:"proposalId"`
	Lane       string `json:"lane"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a lane payload. Messages missing their ids or written
// by a newer producer fail with ErrMalformedMessage.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if strings.TrimSpace(msg.JobID) == "" || strings.TrimSpace(msg.ProposalID) == "" {
		return Message{}, fmt.Errorf("%w: missing job or proposal id", ErrMalformedMessage)
	}
	if msg.Version > messageVersion {
		return Message{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedMessage, msg.Version)
	}
	return msg, nil
}
