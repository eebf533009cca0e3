package workerproc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"guarddog-backend/internal/analyses"
	"guarddog-backend/internal/queue"
)

type sliceSource struct {
	mu   sync.Mutex
	jobs []queue.ActiveJob
	errs []error
}

func (s *sliceSource) Next(ctx context.Context) (queue.ActiveJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return queue.ActiveJob{}, err
	}
	if len(s.jobs) == 0 {
		select {
		case <-ctx.Done():
			return queue.ActiveJob{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
			return queue.ActiveJob{}, queue.ErrNoJob
		}
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

type countingProcessor struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	err      error
	panicOn  string
	delay    time.Duration
}

func (p *countingProcessor) ProcessJob(ctx context.Context, job queue.ActiveJob) (analyses.Result, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if job.ProposalID == p.panicOn {
		panic("boom")
	}
	time.Sleep(p.delay)
	return analyses.Result{ProposalID: job.ProposalID}, p.err
}

func job(id string) queue.ActiveJob {
	return queue.ActiveJob{Job: queue.Job{ID: "j-" + id, ProposalID: id}}
}

func TestHandleJob(t *testing.T) {
	ctx := context.Background()

	if err := HandleJob(ctx, &countingProcessor{}, job("p-1")); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	var missing ErrMissingProposalID
	if err := HandleJob(ctx, &countingProcessor{}, queue.ActiveJob{}); !errors.As(err, &missing) {
		t.Fatalf("expected ErrMissingProposalID, got %v", err)
	}

	cause := errors.New("intelligence down")
	var procErr ErrProcess
	err := HandleJob(ctx, &countingProcessor{err: cause}, job("p-2"))
	if !errors.As(err, &procErr) || procErr.ProposalID != "p-2" || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped ErrProcess, got %v", err)
	}

	err = HandleJob(ctx, &countingProcessor{panicOn: "p-3"}, job("p-3"))
	if !errors.As(err, &procErr) {
		t.Fatalf("expected panic converted to ErrProcess, got %v", err)
	}
}

func TestPoolProcessesAllJobsWithBoundedConcurrency(t *testing.T) {
	src := &sliceSource{
		jobs: []queue.ActiveJob{job("a"), job("b"), job("c"), job("d"), job("e")},
		errs: []error{errors.New("transient")},
	}
	proc := &countingProcessor{delay: 20 * time.Millisecond}
	pool := &Pool{Source: src, Processor: proc, Concurrency: 2, ShutdownTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for proc.calls.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := proc.calls.Load(); got != 5 {
		t.Fatalf("expected 5 jobs processed, got %d", got)
	}
	if peak := proc.peak.Load(); peak > 2 {
		t.Fatalf("concurrency exceeded: %d", peak)
	}
}

func TestPoolRequiresDependencies(t *testing.T) {
	if err := (&Pool{}).Run(context.Background()); !errors.Is(err, queue.ErrQueueNotConfigured) {
		t.Fatalf("expected ErrQueueNotConfigured, got %v", err)
	}
}
