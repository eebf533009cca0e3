package voting

import (
	"testing"

	"guarddog-backend/internal/delegations"
)

func TestDetermineVoteSupport(t *testing.T) {
	cases := []struct {
		rec   string
		score float64
		want  VoteType
	}{
		{"APPROVE", 90, VoteFor},
		{"REJECT", 5, VoteAgainst},
		{"REVIEW", 49.9, VoteFor},
		{"REVIEW", 50, VoteAbstain},
		{"review", 10, VoteFor},
		{"", 75, VoteAbstain},
	}
	for _, tc := range cases {
		if got := DetermineVoteSupport(tc.rec, tc.score, DefaultReviewSafeScore); got != tc.want {
			t.Fatalf("DetermineVoteSupport(%q, %v) = %s, want %s", tc.rec, tc.score, got, tc.want)
		}
	}
}

func TestSupportCodes(t *testing.T) {
	if VoteAgainst.Support() != 0 || VoteFor.Support() != 1 || VoteAbstain.Support() != 2 {
		t.Fatalf("unexpected support encoding")
	}
}

func TestIsEligible(t *testing.T) {
	d := delegations.Delegation{RiskThreshold: 50}
	if !IsEligible(d, 50) {
		t.Fatalf("score equal to threshold should be eligible")
	}
	if IsEligible(d, 50.01) {
		t.Fatalf("score above threshold should not be eligible")
	}
	d.RequiresApproval = true
	if IsEligible(d, 0) {
		t.Fatalf("approval-gated delegation must never be eligible")
	}
}

func TestParseVoteError(t *testing.T) {
	cases := map[string]ErrorCode{
		"execution reverted: AlreadyVoted()":         ErrAlreadyVoted,
		"Voter has already voted":                    ErrAlreadyVoted,
		"execution reverted: NotDelegated()":         ErrNotDelegated,
		"delegator not delegated to agent":           ErrNotDelegated,
		"execution reverted: ProposalNotActive()":    ErrProposalNotActive,
		"governor: proposal not active":              ErrProposalNotActive,
		"insufficient funds for gas * price + value": ErrUnknown,
		"": ErrUnknown,
	}
	for msg, want := range cases {
		if got := ParseVoteError(msg); got != want {
			t.Fatalf("ParseVoteError(%q) = %s, want %s", msg, got, want)
		}
	}
	if !ErrUnknown.Retryable() || ErrAlreadyVoted.Retryable() {
		t.Fatalf("unexpected retryable classification")
	}
}

func TestContractScore(t *testing.T) {
	cases := map[float64]uint64{40.4: 40, 40.5: 41, -3: 0, 130: 100, 0: 0}
	for in, want := range cases {
		if got := contractScore(in); got != want {
			t.Fatalf("contractScore(%v) = %d, want %d", in, got, want)
		}
	}
}
