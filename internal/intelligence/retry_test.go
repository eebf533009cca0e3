package intelligence

import (
	"context"
	"errors"
	"testing"
)

type scriptedAnalyzer struct {
	errs  []error
	calls int
}

func (s *scriptedAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return AnalyzeResponse{}, s.errs[i]
	}
	return AnalyzeResponse{ProposalID: req.ProposalID, CompositeScore: 40}, nil
}

func TestRetryingRetriesTransientOnce(t *testing.T) {
	base := &scriptedAnalyzer{errs: []error{&StatusError{StatusCode: 502}}}
	r := Retrying{Base: base}

	resp, err := r.Analyze(context.Background(), AnalyzeRequest{ProposalID: "p-1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if base.calls != 2 || resp.CompositeScore != 40 {
		t.Fatalf("expected one retry, calls=%d resp=%+v", base.calls, resp)
	}
}

func TestRetryingDoesNotRetryClientErrors(t *testing.T) {
	base := &scriptedAnalyzer{errs: []error{&StatusError{StatusCode: 422}}}
	r := Retrying{Base: base}

	if _, err := r.Analyze(context.Background(), AnalyzeRequest{ProposalID: "p-1"}); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", base.calls)
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("proposal id is required"), false},
	}
	for _, c := range cases {
		if got := ShouldRetry(c.err); got != c.want {
			t.Fatalf("ShouldRetry(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
