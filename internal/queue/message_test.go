package queue

import (
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "valid", payload: `{"jobId":"j-1","proposalId":"p-1","lane":"high","version":1}`},
		{name: "legacy without version", payload: `{"jobId":"j-1","proposalId":"p-1","lane":"normal"}`},
		{name: "not json", payload: `job-1`, wantErr: true},
		{name: "missing proposal", payload: `{"jobId":"j-1","lane":"high"}`, wantErr: true},
		{name: "future version", payload: `{"jobId":"j-1","proposalId":"p-1","version":9}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Fatalf("expected ErrMalformedMessage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeMessage: %v", err)
			}
			if msg.JobID != "j-1" || msg.ProposalID != "p-1" {
				t.Fatalf("unexpected message %+v", msg)
			}
		})
	}
}
