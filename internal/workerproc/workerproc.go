package workerproc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"guarddog-backend/internal/analyses"
	"guarddog-backend/internal/queue"
	"guarddog-backend/internal/shared/telemetry"
)

const (
	defaultConcurrency     = 4
	defaultShutdownTimeout = 30 * time.Second
	errorBackoff           = time.Second
)

// JobSource hands out claimed jobs, high lane first.
type JobSource interface {
	Next(ctx context.Context) (queue.ActiveJob, error)
}

// Processor runs one analysis job to a terminal state.
type Processor interface {
	ProcessJob(ctx context.Context, job queue.ActiveJob) (analyses.Result, error)
}

// ErrMissingProposalID indicates a claimed job without a proposal id.
type ErrMissingProposalID struct {
	JobID string
}

func (e ErrMissingProposalID) Error() string { return "missing proposal id" }

// ErrProcess indicates processing failed after the job was claimed.
type ErrProcess struct {
	ProposalID string
	JobID      string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process analysis"
	}
	return "process analysis: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// HandleJob validates and processes one job, converting panics into ErrProcess.
func HandleJob(ctx context.Context, p Processor, job queue.ActiveJob) (err error) {
	if p == nil {
		return errors.New("analysis service not configured")
	}
	if strings.TrimSpace(job.ProposalID) == "" {
		return ErrMissingProposalID{JobID: job.ID}
	}
	defer func() {
		if r := recover(); r != nil {
			err = ErrProcess{ProposalID: job.ProposalID, JobID: job.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if _, perr := p.ProcessJob(ctx, job); perr != nil {
		return ErrProcess{ProposalID: job.ProposalID, JobID: job.ID, Err: perr}
	}
	return nil
}

// Pool runs up to Concurrency jobs at once until its context ends.
type Pool struct {
	Source          JobSource
	Processor       Processor
	Concurrency     int
	ShutdownTimeout time.Duration
}

// Run claims and processes jobs. On cancellation it stops claiming and waits
// up to ShutdownTimeout for in-flight jobs.
func (p *Pool) Run(ctx context.Context) error {
	if p.Source == nil || p.Processor == nil {
		return queue.ErrQueueNotConfigured
	}
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	shutdownTimeout := p.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	// In-flight jobs finish on their own context so a shutdown does not strand them mid-write.
	jobCtx := context.WithoutCancel(ctx)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{"concurrency": concurrency})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		case sem <- struct{}{}:
		}

		job, err := p.Source.Next(ctx)
		if err != nil {
			<-sem
			switch {
			case ctx.Err() != nil:
				break pollLoop
			case errors.Is(err, queue.ErrNoJob):
				continue
			}
			telemetry.Error("worker.claim_failed", map[string]any{"error": err})
			select {
			case <-ctx.Done():
				break pollLoop
			case <-time.After(errorBackoff):
			}
			continue
		}

		wg.Add(1)
		go func(job queue.ActiveJob) {
			defer wg.Done()
			defer func() { <-sem }()
			p.handle(jobCtx, job)
		}(job)
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		return nil
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
		return context.DeadlineExceeded
	}
}

func (p *Pool) handle(ctx context.Context, job queue.ActiveJob) {
	fields := map[string]any{
		"proposal_id": job.ProposalID,
		"job_id":      job.ID,
		"lane":        job.Lane,
	}
	telemetry.Info("worker.analysis.received", fields)
	if err := HandleJob(ctx, p.Processor, job); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.failed", fields)
		return
	}
	telemetry.Info("worker.analysis.completed", fields)
}
