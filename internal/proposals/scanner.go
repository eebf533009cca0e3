package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"guarddog-backend/internal/events"
	"guarddog-backend/internal/queue"
	"guarddog-backend/internal/shared/telemetry"
)

const (
	defaultScanInterval      = time.Minute
	defaultVisibilityTimeout = 15 * time.Minute
	scanBatchSize            = 100
)

// JobTracker exposes the queue state a sweep repairs.
type JobTracker interface {
	GetJob(ctx context.Context, proposalID string) (queue.Job, error)
	FailStalled(ctx context.Context, visibility time.Duration) ([]queue.Job, error)
}

// CompletionReplayer applies a completion event the listener may have missed.
// Implementations must be idempotent per job.
type CompletionReplayer interface {
	ReplayCompletion(ctx context.Context, ev events.Event)
}

// Scanner periodically enqueues proposals still waiting for analysis on the normal lane.
// Enqueue is idempotent per proposal, so overlapping sweeps are harmless.
//
// When Jobs is set a sweep also fails jobs claimed longer than Visibility and
// reconciles PROCESSING proposals against their job: completed jobs are replayed
// through Completions, failed or expired ones go back to PENDING_ANALYSIS.
type Scanner struct {
	Svc         *Service
	Interval    time.Duration
	Jobs        JobTracker
	Completions CompletionReplayer
	Visibility  time.Duration
}

// Run sweeps until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = defaultScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			telemetry.Error("scanner.sweep_failed", map[string]any{"error": err})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep repairs stuck work, then enqueues one batch and returns how many jobs
// were submitted.
func (s *Scanner) Sweep(ctx context.Context) (int, error) {
	if s.Svc == nil || s.Svc.Queue == nil {
		return 0, queue.ErrQueueNotConfigured
	}
	if s.Jobs != nil {
		s.failStalled(ctx)
		if err := s.reconcileProcessing(ctx); err != nil {
			return 0, err
		}
	}

	pending, err := s.Svc.Repo.ListByStatus(ctx, StatusPendingAnalysis, scanBatchSize)
	if err != nil {
		return 0, err
	}
	submitted := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}
		if _, err := s.Svc.Queue.AddJob(ctx, p.ID, PayloadFor(p, "scanner"), queue.PriorityNormal); err != nil {
			telemetry.Warn("scanner.enqueue_failed", map[string]any{
				"proposal_id": p.ID,
				"error":       err,
			})
			continue
		}
		submitted++
	}
	if submitted > 0 {
		telemetry.Info("scanner.sweep", map[string]any{
			"pending":   len(pending),
			"submitted": submitted,
		})
	}
	return submitted, nil
}

func (s *Scanner) failStalled(ctx context.Context) {
	visibility := s.Visibility
	if visibility <= 0 {
		visibility = defaultVisibilityTimeout
	}
	failed, err := s.Jobs.FailStalled(ctx, visibility)
	if err != nil {
		telemetry.Warn("scanner.stall_check_failed", map[string]any{"error": err})
	}
	if len(failed) > 0 {
		telemetry.Warn("scanner.stalled_jobs", map[string]any{
			"count":      len(failed),
			"visibility": visibility.String(),
		})
	}
}

func (s *Scanner) reconcileProcessing(ctx context.Context) error {
	processing, err := s.Svc.Repo.ListByStatus(ctx, StatusProcessing, scanBatchSize)
	if err != nil {
		return err
	}
	for _, p := range processing {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		job, err := s.Jobs.GetJob(ctx, p.ID)
		switch {
		case errors.Is(err, queue.ErrNotFound):
			s.resetToPending(ctx, p.ID, "job expired")
		case err != nil:
			telemetry.Warn("scanner.job_lookup_failed", map[string]any{
				"proposal_id": p.ID,
				"error":       err,
			})
		case job.State == queue.StateFailed:
			s.resetToPending(ctx, p.ID, "job failed")
		case job.State == queue.StateCompleted:
			ev, ok := completionFromJob(job)
			if !ok || s.Completions == nil {
				s.resetToPending(ctx, p.ID, "completed job has no usable result")
				continue
			}
			telemetry.Info("scanner.completion_replayed", map[string]any{
				"proposal_id": p.ID,
				"job_id":      job.ID,
			})
			s.Completions.ReplayCompletion(ctx, ev)
		}
	}
	return nil
}

func (s *Scanner) resetToPending(ctx context.Context, proposalID, reason string) {
	if err := s.Svc.Repo.UpdateStatus(ctx, proposalID, StatusPendingAnalysis); err != nil {
		telemetry.Warn("scanner.reset_failed", map[string]any{
			"proposal_id": proposalID,
			"error":       err,
		})
		return
	}
	telemetry.Info("scanner.proposal_reset", map[string]any{
		"proposal_id": proposalID,
		"reason":      reason,
	})
}

// jobResult is the subset of the stored analysis result a completion event needs.
type jobResult struct {
	CompositeScore   *float64 `json:"compositeScore"`
	RiskLevel        string   `json:"riskLevel"`
	Recommendation   string   `json:"recommendation"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

func completionFromJob(job queue.Job) (events.Event, bool) {
	if len(job.Result) == 0 {
		return events.Event{}, false
	}
	var res jobResult
	if err := json.Unmarshal(job.Result, &res); err != nil || res.CompositeScore == nil {
		return events.Event{}, false
	}
	ev := events.Completed(job.ID, job.ProposalID, *res.CompositeScore, res.RiskLevel, res.Recommendation,
		time.Duration(res.ProcessingTimeMs)*time.Millisecond)
	return ev, ev.Result.Valid()
}
