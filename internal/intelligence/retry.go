package intelligence

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"guarddog-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// Retrying wraps an Analyzer with a single delayed retry for transient failures.
type Retrying struct {
	Base  Analyzer
	Delay time.Duration
}

// NewRetrying wraps base. A nil base yields nil.
func NewRetrying(base Analyzer) Analyzer {
	if base == nil {
		return nil
	}
	return Retrying{Base: base, Delay: retryBaseDelay}
}

func (r Retrying) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	resp, err := r.Base.Analyze(ctx, req)
	if err == nil || !ShouldRetry(err) {
		return resp, err
	}

	telemetry.Warn("intelligence.retry", map[string]any{
		"proposal_id": req.ProposalID,
		"attempt":     1,
		"error":       err,
	})
	select {
	case <-time.After(r.Delay):
	case <-ctx.Done():
		return AnalyzeResponse{}, ctx.Err()
	}
	return r.Base.Analyze(ctx, req)
}

// ShouldRetry reports whether err looks transient: timeouts, 5xx, dropped connections.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}
