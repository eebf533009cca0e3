package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"guarddog-backend/internal/events"
	"guarddog-backend/internal/intelligence"
	"guarddog-backend/internal/proposals"
	"guarddog-backend/internal/queue"
	"guarddog-backend/internal/shared/metrics"
	"guarddog-backend/internal/shared/storage/object"
	"guarddog-backend/internal/shared/telemetry"
)

// ProposalStore is the slice of the proposals repo the worker touches.
type ProposalStore interface {
	GetByID(ctx context.Context, id string) (proposals.Proposal, error)
	UpdateStatus(ctx context.Context, id string, status proposals.Status) error
}

// JobCache holds the ephemeral status and result projections.
type JobCache interface {
	SetJobStatus(ctx context.Context, proposalID string, status queue.Status) error
	SetResult(ctx context.Context, proposalID string, result any) error
}

// JobAcker finalizes a claimed job.
type JobAcker interface {
	Complete(ctx context.Context, job queue.ActiveJob, result any) error
	Fail(ctx context.Context, job queue.ActiveJob, reason string) error
}

// Service runs analysis jobs on the worker side.
type Service struct {
	Repo       Repo
	Proposals  ProposalStore
	Analyzer   intelligence.Analyzer
	Store      object.ObjectStore
	Cache      JobCache
	Jobs       JobAcker
	Bus        events.Bus
	Thresholds intelligence.Thresholds
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// ProcessJob scores the proposal behind a claimed job. Every failure marks the
// job failed and publishes a failed event; the returned error is informational.
func (s *Service) ProcessJob(ctx context.Context, job queue.ActiveJob) (Result, error) {
	startedAt := s.now()
	analysis := Analysis{
		ID:         uuid.NewString(),
		ProposalID: job.ProposalID,
		JobID:      job.ID,
		Status:     StatusProcessing,
		StartedAt:  &startedAt,
		CreatedAt:  startedAt,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Result{}, s.fail(ctx, job, "", startedAt, fmt.Errorf("create analysis: %w", err))
	}

	proposal, err := s.Proposals.GetByID(ctx, job.ProposalID)
	if err != nil {
		return Result{}, s.fail(ctx, job, analysis.ID, startedAt, fmt.Errorf("proposal lookup: %w", err))
	}
	if err := s.Proposals.UpdateStatus(ctx, proposal.ID, proposals.StatusProcessing); err != nil {
		return Result{}, s.fail(ctx, job, analysis.ID, startedAt, fmt.Errorf("set proposal processing: %w", err))
	}
	s.setStatus(ctx, job.ProposalID, queue.StatusProcessing)
	s.publish(ctx, events.New(events.TypeProcessing, job.ID, job.ProposalID))
	telemetry.Info("analysis.status", map[string]any{
		"proposal_id":       job.ProposalID,
		"job_id":            job.ID,
		"analysis_id":       analysis.ID,
		"lane":              job.Lane,
		"status_transition": "queued->processing",
	})

	if s.Analyzer == nil {
		return Result{}, s.fail(ctx, job, analysis.ID, startedAt, errors.New("intelligence client not configured"))
	}
	resp, err := s.Analyzer.Analyze(ctx, intelligence.AnalyzeRequest{
		ProposalID:    proposal.ID,
		ProposalText:  proposal.Text(),
		WalletAddress: proposal.ProposerAddress,
	})
	if err != nil {
		return Result{}, s.fail(ctx, job, analysis.ID, startedAt, fmt.Errorf("intelligence analyze: %w", err))
	}

	rawKey := s.archive(ctx, job, resp.Raw)
	level, rec := intelligence.Classify(resp.CompositeScore, s.Thresholds)
	breakdown, err := json.Marshal(resp.AgentBreakdown())
	if err != nil {
		return Result{}, s.fail(ctx, job, analysis.ID, startedAt, fmt.Errorf("encode agent breakdown: %w", err))
	}

	completedAt := s.now()
	out := Outcome{
		CompositeScore: resp.CompositeScore,
		RiskLevel:      level,
		Recommendation: rec,
		AgentBreakdown: breakdown,
		RawKey:         rawKey,
	}
	if err := s.Repo.UpdateResult(ctx, analysis.ID, out, completedAt); err != nil {
		return Result{}, s.fail(ctx, job, analysis.ID, startedAt, fmt.Errorf("set analysis result: %w", err))
	}

	elapsed := completedAt.Sub(startedAt)
	result := Result{
		AnalysisID:       analysis.ID,
		ProposalID:       job.ProposalID,
		JobID:            job.ID,
		CompositeScore:   resp.CompositeScore,
		RiskLevel:        level,
		Recommendation:   rec,
		AgentBreakdown:   breakdown,
		ProcessingTimeMs: elapsed.Milliseconds(),
		CompletedAt:      completedAt,
	}
	if s.Cache != nil {
		if err := s.Cache.SetResult(ctx, job.ProposalID, result); err != nil {
			telemetry.Warn("analysis.result_cache_failed", map[string]any{
				"proposal_id": job.ProposalID,
				"error":       err,
			})
		}
	}
	s.setStatus(ctx, job.ProposalID, queue.StatusComplete)
	if s.Jobs != nil {
		if err := s.Jobs.Complete(ctx, job, result); err != nil {
			telemetry.Warn("analysis.job_complete_failed", map[string]any{
				"proposal_id": job.ProposalID,
				"job_id":      job.ID,
				"error":       err,
			})
		}
	}
	s.publish(ctx, events.Completed(job.ID, job.ProposalID, resp.CompositeScore, level, rec, elapsed))

	metrics.IncAnalysisJob("completed")
	metrics.ObserveAnalysisDurationMs(float64(elapsed.Microseconds()) / 1000.0)
	telemetry.Info("analysis.status", map[string]any{
		"proposal_id":       job.ProposalID,
		"job_id":            job.ID,
		"analysis_id":       analysis.ID,
		"status_transition": "processing->completed",
		"composite_score":   resp.CompositeScore,
		"risk_level":        level,
		"recommendation":    rec,
		"duration_ms":       elapsed.Milliseconds(),
	})
	return result, nil
}

func (s *Service) archive(ctx context.Context, job queue.ActiveJob, raw json.RawMessage) string {
	if s.Store == nil || len(raw) == 0 {
		return ""
	}
	key, err := object.IntelligenceKey(job.ProposalID, job.ID)
	if err != nil {
		telemetry.Warn("analysis.archive_failed", map[string]any{
			"proposal_id": job.ProposalID,
			"job_id":      job.ID,
			"error":       err,
		})
		return ""
	}
	if _, err := s.Store.Put(ctx, key, "application/json", bytes.NewReader(raw)); err != nil {
		telemetry.Warn("analysis.archive_failed", map[string]any{
			"proposal_id": job.ProposalID,
			"job_id":      job.ID,
			"key":         key,
			"error":       err,
		})
		return ""
	}
	return key
}

func (s *Service) fail(ctx context.Context, job queue.ActiveJob, analysisID string, startedAt time.Time, cause error) error {
	msg := sanitizeError(cause)
	completedAt := s.now()
	if analysisID != "" {
		if err := s.Repo.UpdateStatus(context.WithoutCancel(ctx), analysisID, StatusFailed, &msg, &completedAt); err != nil {
			telemetry.Error("analysis.fail_update_failed", map[string]any{
				"analysis_id": analysisID,
				"error":       err,
			})
		}
	}
	s.setStatus(ctx, job.ProposalID, queue.StatusFailed)
	if s.Jobs != nil {
		if err := s.Jobs.Fail(context.WithoutCancel(ctx), job, msg); err != nil {
			telemetry.Warn("analysis.job_fail_failed", map[string]any{
				"proposal_id": job.ProposalID,
				"job_id":      job.ID,
				"error":       err,
			})
		}
	}
	s.publish(context.WithoutCancel(ctx), events.Failed(job.ID, job.ProposalID, msg))

	metrics.IncAnalysisJob("failed")
	metrics.ObserveAnalysisDurationMs(float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0)
	telemetry.Error("analysis.status", map[string]any{
		"proposal_id":       job.ProposalID,
		"job_id":            job.ID,
		"analysis_id":       analysisID,
		"status_transition": "processing->failed",
		"error":             msg,
	})
	return cause
}

func (s *Service) setStatus(ctx context.Context, proposalID string, status queue.Status) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SetJobStatus(ctx, proposalID, status); err != nil {
		telemetry.Warn("analysis.status_cache_failed", map[string]any{
			"proposal_id": proposalID,
			"status":      string(status),
			"error":       err,
		})
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.Bus == nil {
		return
	}
	if err := s.Bus.Publish(ctx, events.Channel(ev.ProposalID), ev); err != nil {
		telemetry.Warn("analysis.event.publish_failed", map[string]any{
			"proposal_id": ev.ProposalID,
			"type":        string(ev.Type),
			"error":       err,
		})
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
