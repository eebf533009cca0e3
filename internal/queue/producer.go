package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"guarddog-backend/internal/events"
	"guarddog-backend/internal/shared/metrics"
	"guarddog-backend/internal/shared/telemetry"
)

const messageVersion = 1

// Producer accepts analysis requests and deduplicates them by proposal id.
type Producer struct {
	Store *Store
	Lanes LaneTransport
	Bus   events.Bus
	Now   func() time.Time
}

// NewProducer constructs a Producer.
func NewProducer(store *Store, lanes LaneTransport, bus events.Bus) *Producer {
	return &Producer{Store: store, Lanes: lanes, Bus: bus, Now: time.Now}
}

func (p *Producer) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// AddJob enqueues an analysis for the proposal. A waiting, active, or completed job for the
// same proposal is returned unchanged; a failed one is replaced by a fresh job.
func (p *Producer) AddJob(ctx context.Context, proposalID string, payload Payload, priority Priority) (Job, error) {
	if p == nil || p.Store == nil || p.Lanes == nil {
		return Job{}, ErrQueueNotConfigured
	}
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return Job{}, errors.New("proposalID is required")
	}

	candidate := Job{
		ID:         uuid.NewString(),
		ProposalID: proposalID,
		Priority:   priority,
		Lane:       priority.Lane(),
		Weight:     priority.Weight(),
		State:      StateWaiting,
		StateName:  StateWaiting.String(),
		Payload:    payload,
		CreatedAt:  p.now(),
	}
	candidate.UpdatedAt = candidate.CreatedAt

	existingID, created, err := p.Store.create(ctx, candidate)
	if err != nil {
		return Job{}, err
	}
	if !created {
		existing, err := p.Store.Get(ctx, proposalID)
		if err != nil {
			return Job{}, fmt.Errorf("load existing job %s: %w", existingID, err)
		}
		metrics.IncJobDeduplicated(candidate.Lane)
		telemetry.Info("queue.job.deduplicated", map[string]any{
			"proposal_id": proposalID,
			"job_id":      existing.ID,
			"state":       existing.StateName,
			"lane":        existing.Lane,
		})
		return existing, nil
	}

	msg := Message{
		JobID:      candidate.ID,
		ProposalID: proposalID,
		Lane:       candidate.Lane,
		EnqueuedAt: candidate.CreatedAt.Format(time.RFC3339),
		Version:    messageVersion,
	}
	if err := p.Lanes.Push(ctx, msg); err != nil {
		// Leave the job failed so a retry can replace it.
		if markErr := p.Store.transition(context.Background(), candidate, StateFailed, "failedReason", "enqueue failed"); markErr != nil {
			telemetry.Error("queue.job.mark_failed", map[string]any{
				"proposal_id": proposalID,
				"job_id":      candidate.ID,
				"error":       markErr,
			})
		}
		return Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	metrics.IncJobEnqueued(candidate.Lane)
	if err := p.Store.SetStatus(ctx, proposalID, StatusQueued); err != nil {
		telemetry.Warn("queue.status.write_failed", map[string]any{
			"proposal_id": proposalID,
			"error":       err,
		})
	}
	p.publish(ctx, events.New(events.TypeQueued, candidate.ID, proposalID))

	telemetry.Info("queue.job.enqueued", map[string]any{
		"proposal_id": proposalID,
		"job_id":      candidate.ID,
		"lane":        candidate.Lane,
		"source":      payload.Source,
	})
	return candidate, nil
}

func (p *Producer) publish(ctx context.Context, ev events.Event) {
	if p.Bus == nil {
		return
	}
	if err := p.Bus.Publish(ctx, events.Channel(ev.ProposalID), ev); err != nil {
		telemetry.Warn("queue.event.publish_failed", map[string]any{
			"proposal_id": ev.ProposalID,
			"job_id":      ev.JobID,
			"type":        string(ev.Type),
			"error":       err,
		})
	}
}

// StalledReason is recorded on jobs failed by FailStalled.
const StalledReason = "worker stalled: visibility timeout exceeded"

// FailStalled fails active jobs claimed longer than visibility ago and publishes a
// failed event for each, so the proposal can be analysed again.
func (p *Producer) FailStalled(ctx context.Context, visibility time.Duration) ([]Job, error) {
	if p == nil || p.Store == nil {
		return nil, ErrQueueNotConfigured
	}
	cutoff := p.now().Add(-visibility)
	var failed []Job
	for _, pr := range Lanes {
		lane := pr.Lane()
		ids, err := p.Store.activeIDs(ctx, lane)
		if err != nil {
			return failed, fmt.Errorf("list active jobs: %w", err)
		}
		for _, id := range ids {
			job, err := p.Store.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				_ = p.Store.forgetActive(ctx, lane, id)
				continue
			}
			if err != nil {
				return failed, err
			}
			if job.State != StateActive {
				continue
			}
			claimed := job.UpdatedAt
			if job.ClaimedAt != nil {
				claimed = *job.ClaimedAt
			}
			if claimed.After(cutoff) {
				continue
			}
			err = p.Store.transition(ctx, job, StateFailed, "failedReason", StalledReason)
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTerminal) {
				continue
			}
			if err != nil {
				return failed, err
			}
			job.State = StateFailed
			job.StateName = StateFailed.String()
			job.FailedReason = StalledReason

			metrics.IncJobStalled(lane)
			if err := p.Store.SetStatus(ctx, id, StatusFailed); err != nil {
				telemetry.Warn("queue.status.write_failed", map[string]any{
					"proposal_id": id,
					"error":       err,
				})
			}
			p.publish(ctx, events.Failed(job.ID, id, StalledReason))
			telemetry.Warn("queue.job.stalled", map[string]any{
				"proposal_id": id,
				"job_id":      job.ID,
				"lane":        lane,
				"claimed_at":  claimed.Format(time.RFC3339),
			})
			failed = append(failed, job)
		}
	}
	return failed, nil
}

// GetJob returns the current job for a proposal.
func (p *Producer) GetJob(ctx context.Context, proposalID string) (Job, error) {
	if p == nil || p.Store == nil {
		return Job{}, ErrQueueNotConfigured
	}
	return p.Store.Get(ctx, proposalID)
}

// GetJobStatus reads the ephemeral status cache. Not authoritative.
func (p *Producer) GetJobStatus(ctx context.Context, proposalID string) (Status, error) {
	if p == nil || p.Store == nil {
		return "", ErrQueueNotConfigured
	}
	return p.Store.GetStatus(ctx, proposalID)
}

// SetJobStatus writes the ephemeral status cache.
func (p *Producer) SetJobStatus(ctx context.Context, proposalID string, status Status) error {
	if p == nil || p.Store == nil {
		return ErrQueueNotConfigured
	}
	return p.Store.SetStatus(ctx, proposalID, status)
}

// GetResult returns the cached terminal payload.
func (p *Producer) GetResult(ctx context.Context, proposalID string) (json.RawMessage, error) {
	if p == nil || p.Store == nil {
		return nil, ErrQueueNotConfigured
	}
	return p.Store.GetResult(ctx, proposalID)
}

// SetResult caches the terminal payload.
func (p *Producer) SetResult(ctx context.Context, proposalID string, result any) error {
	if p == nil || p.Store == nil {
		return ErrQueueNotConfigured
	}
	return p.Store.SetResult(ctx, proposalID, result)
}

// GetQueueHealth returns per-lane waiting/active/completed/failed counts.
func (p *Producer) GetQueueHealth(ctx context.Context) (Health, error) {
	if p == nil || p.Store == nil {
		return nil, ErrQueueNotConfigured
	}
	return p.Store.Health(ctx)
}
