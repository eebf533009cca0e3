package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"guarddog-backend/internal/events"
	"guarddog-backend/internal/intelligence"
	"guarddog-backend/internal/queue"
)

type fakeQueue struct {
	mu    sync.Mutex
	calls []fakeCall
	err   error
}

type fakeCall struct {
	ProposalID string
	Payload    queue.Payload
	Priority   queue.Priority
}

func (f *fakeQueue) AddJob(ctx context.Context, proposalID string, payload queue.Payload, priority queue.Priority) (queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return queue.Job{}, f.err
	}
	f.calls = append(f.calls, fakeCall{ProposalID: proposalID, Payload: payload, Priority: priority})
	return queue.Job{
		ID:         "job-" + proposalID,
		ProposalID: proposalID,
		Priority:   priority,
		Lane:       priority.Lane(),
		State:      queue.StateWaiting,
		StateName:  queue.StateWaiting.String(),
	}, nil
}

type fakeJobs struct {
	jobs       map[string]queue.Job
	visibility time.Duration
}

func (f *fakeJobs) GetJob(ctx context.Context, proposalID string) (queue.Job, error) {
	job, ok := f.jobs[proposalID]
	if !ok {
		return queue.Job{}, queue.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) FailStalled(ctx context.Context, visibility time.Duration) ([]queue.Job, error) {
	f.visibility = visibility
	return nil, nil
}

type recordingReplayer struct {
	events []events.Event
}

func (r *recordingReplayer) ReplayCompletion(ctx context.Context, ev events.Event) {
	r.events = append(r.events, ev)
}

type fakeSimulator struct {
	resp intelligence.SimulateResponse
	err  error
}

func (f fakeSimulator) Simulate(ctx context.Context, draftText string) (intelligence.SimulateResponse, error) {
	return f.resp, f.err
}

func seedProposal(t *testing.T, repo Repo, id string, status Status, createdAt time.Time) Proposal {
	t.Helper()
	p := Proposal{
		ID:                id,
		OnchainProposalID: "42",
		DAOGovernor:       "0xGovernor",
		ChainID:           10143,
		Title:             "Grant " + id,
		Description:       "Fund tooling",
		ProposerAddress:   "0xProposer",
		Status:            status,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	return p
}

func TestStatusForRecommendation(t *testing.T) {
	cases := map[string]Status{
		"APPROVE": StatusAutoApproved,
		"approve": StatusAutoApproved,
		"REJECT":  StatusAutoRejected,
		"REVIEW":  StatusNeedsReview,
		"":        StatusNeedsReview,
		"MAYBE":   StatusNeedsReview,
	}
	for rec, want := range cases {
		if got := StatusForRecommendation(rec); got != want {
			t.Fatalf("StatusForRecommendation(%q) = %s, want %s", rec, got, want)
		}
	}
	if Status("BOGUS").Valid() || !StatusExecuted.Valid() {
		t.Fatalf("Valid() mismatch")
	}
}

func TestProposalText(t *testing.T) {
	if got := (Proposal{Title: "T", Description: "D"}).Text(); got != "T\n\nD" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := (Proposal{Description: "D"}).Text(); got != "D" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestMemoryRepoUpdateAnalysis(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	seedProposal(t, repo, "p-1", StatusProcessing, time.Now())

	if err := repo.UpdateAnalysis(ctx, "p-1", StatusAutoRejected, 80, "HIGH"); err != nil {
		t.Fatalf("UpdateAnalysis: %v", err)
	}
	p, err := repo.GetByID(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if p.Status != StatusAutoRejected || p.CompositeRiskScore == nil || *p.CompositeRiskScore != 80 || *p.RiskLevel != "HIGH" {
		t.Fatalf("unexpected proposal %+v", p)
	}
	if err := repo.UpdateStatus(ctx, "missing", StatusExpired); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Create(ctx, p); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestScannerEnqueuesPendingOnNormalLane(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Now().Add(-time.Hour)
	seedProposal(t, repo, "p-old", StatusPendingAnalysis, base)
	seedProposal(t, repo, "p-new", StatusPendingAnalysis, base.Add(time.Minute))
	seedProposal(t, repo, "p-done", StatusAutoApproved, base)

	q := &fakeQueue{}
	scanner := &Scanner{Svc: &Service{Repo: repo, Queue: q}}

	n, err := scanner.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 || len(q.calls) != 2 {
		t.Fatalf("expected 2 submissions, got %d (%v)", n, q.calls)
	}
	if q.calls[0].ProposalID != "p-old" || q.calls[1].ProposalID != "p-new" {
		t.Fatalf("expected oldest first, got %v", q.calls)
	}
	for _, c := range q.calls {
		if c.Priority != queue.PriorityNormal || c.Payload.Source != "scanner" {
			t.Fatalf("scanner must use the normal lane, got %+v", c)
		}
	}
}

func TestScannerContinuesPastEnqueueErrors(t *testing.T) {
	repo := NewMemoryRepo()
	seedProposal(t, repo, "p-1", StatusPendingAnalysis, time.Now())
	scanner := &Scanner{Svc: &Service{Repo: repo, Queue: &fakeQueue{err: errors.New("redis down")}}}

	n, err := scanner.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no submissions, got %d", n)
	}
}

func TestServiceCreateValidates(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	if _, err := svc.Create(context.Background(), CreateInput{Title: "x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	p, err := svc.Create(context.Background(), CreateInput{DAOGovernor: "0xG", ChainID: 1, Title: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" || p.Status != StatusPendingAnalysis {
		t.Fatalf("unexpected proposal %+v", p)
	}
}

func TestScannerReconcilesProcessingProposals(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Now().Add(-time.Hour)
	seedProposal(t, repo, "p-done", StatusProcessing, base)
	seedProposal(t, repo, "p-failed", StatusProcessing, base.Add(time.Minute))
	seedProposal(t, repo, "p-gone", StatusProcessing, base.Add(2*time.Minute))
	seedProposal(t, repo, "p-running", StatusProcessing, base.Add(3*time.Minute))

	result, _ := json.Marshal(map[string]any{
		"compositeScore":   72.5,
		"riskLevel":        "HIGH",
		"recommendation":   "REJECT",
		"processingTimeMs": 1200,
	})
	jobs := &fakeJobs{jobs: map[string]queue.Job{
		"p-done":    {ID: "job-done", ProposalID: "p-done", State: queue.StateCompleted, Result: result},
		"p-failed":  {ID: "job-failed", ProposalID: "p-failed", State: queue.StateFailed},
		"p-running": {ID: "job-running", ProposalID: "p-running", State: queue.StateActive},
	}}
	replayer := &recordingReplayer{}
	q := &fakeQueue{}
	scanner := &Scanner{Svc: &Service{Repo: repo, Queue: q}, Jobs: jobs, Completions: replayer}

	n, err := scanner.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if jobs.visibility != defaultVisibilityTimeout {
		t.Fatalf("expected default visibility timeout, got %s", jobs.visibility)
	}

	if len(replayer.events) != 1 {
		t.Fatalf("expected one replayed completion, got %+v", replayer.events)
	}
	ev := replayer.events[0]
	if ev.Type != events.TypeComplete || ev.JobID != "job-done" || ev.ProposalID != "p-done" {
		t.Fatalf("unexpected replayed event %+v", ev)
	}
	if *ev.Result.CompositeScore != 72.5 || ev.Result.Recommendation != "REJECT" || *ev.ProcessingTimeMs != 1200 {
		t.Fatalf("unexpected replayed result %+v", ev.Result)
	}

	for id, want := range map[string]Status{
		"p-done":    StatusProcessing,
		"p-failed":  StatusPendingAnalysis,
		"p-gone":    StatusPendingAnalysis,
		"p-running": StatusProcessing,
	} {
		p, err := repo.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID %s: %v", id, err)
		}
		if p.Status != want {
			t.Fatalf("%s: expected %s, got %s", id, want, p.Status)
		}
	}
	if n != 2 || q.calls[0].ProposalID != "p-failed" || q.calls[1].ProposalID != "p-gone" {
		t.Fatalf("reset proposals must be enqueued in the same sweep, got %d %v", n, q.calls)
	}
}

func TestScannerResetsCompletedJobWithoutResult(t *testing.T) {
	repo := NewMemoryRepo()
	seedProposal(t, repo, "p-1", StatusProcessing, time.Now())
	jobs := &fakeJobs{jobs: map[string]queue.Job{
		"p-1": {ID: "job-1", ProposalID: "p-1", State: queue.StateCompleted, Result: json.RawMessage(`{"riskLevel":"LOW"}`)},
	}}
	replayer := &recordingReplayer{}
	scanner := &Scanner{Svc: &Service{Repo: repo, Queue: &fakeQueue{}}, Jobs: jobs, Completions: replayer}

	if _, err := scanner.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(replayer.events) != 0 {
		t.Fatalf("invalid result must not be replayed")
	}
	p, _ := repo.GetByID(context.Background(), "p-1")
	if p.Status != StatusPendingAnalysis {
		t.Fatalf("expected reset to pending, got %s", p.Status)
	}
}

func TestScannerRecoversStalledJob(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := queue.NewStore(client)
	lanes := queue.NewRedisLanes(client)
	lanes.PopTimeout = 100 * time.Millisecond
	producer := queue.NewProducer(store, lanes, events.NewMemoryBus())
	consumer := queue.NewConsumer(store, lanes)
	ctx := context.Background()

	repo := NewMemoryRepo()
	seedProposal(t, repo, "p-stuck", StatusProcessing, time.Now())
	first, err := producer.AddJob(ctx, "p-stuck", queue.Payload{Source: "scanner"}, queue.PriorityNormal)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if _, err := consumer.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}

	scanner := &Scanner{
		Svc:        &Service{Repo: repo, Queue: producer},
		Jobs:       producer,
		Visibility: 15 * time.Minute,
	}
	n, err := scanner.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("claimed job within visibility must be left alone, submitted %d", n)
	}

	producer.Now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = scanner.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected stalled proposal to be resubmitted, got %d", n)
	}
	job, err := producer.GetJob(ctx, "p-stuck")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.ID == first.ID || job.State != queue.StateWaiting {
		t.Fatalf("expected a fresh waiting job, got %+v", job)
	}
	p, _ := repo.GetByID(ctx, "p-stuck")
	if p.Status != StatusPendingAnalysis {
		t.Fatalf("expected PENDING_ANALYSIS, got %s", p.Status)
	}
}
