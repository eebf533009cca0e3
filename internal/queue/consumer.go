package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guarddog-backend/internal/shared/telemetry"
)

// ActiveJob is a job claimed by a worker.
type ActiveJob struct {
	Job
	delivery Delivery
}

// Consumer claims jobs from the lanes for the analysis worker.
type Consumer struct {
	Store *Store
	Lanes LaneTransport
}

// NewConsumer constructs a Consumer.
func NewConsumer(store *Store, lanes LaneTransport) *Consumer {
	return &Consumer{Store: store, Lanes: lanes}
}

// Next claims the next job, high lane first. Malformed messages and stale
// messages whose job was superseded or already finished are skipped.
func (c *Consumer) Next(ctx context.Context) (ActiveJob, error) {
	if c == nil || c.Store == nil || c.Lanes == nil {
		return ActiveJob{}, ErrQueueNotConfigured
	}
	for {
		d, err := c.Lanes.Pop(ctx)
		if errors.Is(err, ErrMalformedMessage) {
			telemetry.Warn("queue.message.malformed", map[string]any{"error": err.Error()})
			continue
		}
		if err != nil {
			return ActiveJob{}, err
		}
		job, err := c.Store.Get(ctx, d.Message.ProposalID)
		if err == nil && job.ID == d.Message.JobID && job.State == StateWaiting {
			claimedAt := time.Now().UTC()
			if err := c.Store.transition(ctx, job, StateActive, "claimedAt", claimedAt.Format(time.RFC3339Nano)); err == nil {
				job.State = StateActive
				job.StateName = StateActive.String()
				job.ClaimedAt = &claimedAt
				return ActiveJob{Job: job, delivery: d}, nil
			} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrTerminal) {
				return ActiveJob{}, err
			}
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return ActiveJob{}, err
		}

		telemetry.Warn("queue.message.stale", map[string]any{
			"proposal_id": d.Message.ProposalID,
			"job_id":      d.Message.JobID,
			"lane":        d.Message.Lane,
		})
		c.ack(ctx, d)
		if err := ctx.Err(); err != nil {
			return ActiveJob{}, err
		}
	}
}

// Complete records the result and acknowledges the message.
func (c *Consumer) Complete(ctx context.Context, job ActiveJob, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.Store.transition(ctx, job.Job, StateCompleted, "result", string(payload)); err != nil {
		return err
	}
	c.ack(ctx, job.delivery)
	return nil
}

// Fail records the failure reason and acknowledges the message.
func (c *Consumer) Fail(ctx context.Context, job ActiveJob, reason string) error {
	if err := c.Store.transition(ctx, job.Job, StateFailed, "failedReason", reason); err != nil {
		return err
	}
	c.ack(ctx, job.delivery)
	return nil
}

func (c *Consumer) ack(ctx context.Context, d Delivery) {
	if d.Ack == nil {
		return
	}
	if err := d.Ack(ctx); err != nil {
		telemetry.Error("queue.message.ack_failed", map[string]any{
			"proposal_id": d.Message.ProposalID,
			"job_id":      d.Message.JobID,
			"error":       err,
		})
	}
}
