package listener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"guarddog-backend/internal/analyses"
	"guarddog-backend/internal/events"
	"guarddog-backend/internal/proposals"
	"guarddog-backend/internal/shared/metrics"
	"guarddog-backend/internal/shared/telemetry"
	"guarddog-backend/internal/voting"
)

var ErrAlreadyStarted = errors.New("listener already started")

// ProposalStore is the slice of the proposals repo the listener writes.
type ProposalStore interface {
	GetByID(ctx context.Context, id string) (proposals.Proposal, error)
	UpdateStatus(ctx context.Context, id string, status proposals.Status) error
	UpdateAnalysis(ctx context.Context, id string, status proposals.Status, score float64, riskLevel string) error
}

// AnalysisLookup finds the analysis record behind a completion.
type AnalysisLookup interface {
	GetLatestCompleted(ctx context.Context, proposalID string) (analyses.Analysis, error)
}

// Voter runs the auto-voting pass for a scored proposal.
type Voter interface {
	Execute(ctx context.Context, req voting.Request) (voting.Result, error)
}

// Listener reacts to analysis lifecycle events on every proposal channel.
type Listener struct {
	Bus       events.Bus
	Proposals ProposalStore
	Analyses  AnalysisLookup
	Voter     Voter
	Guard     CompletionGuard

	mu        sync.Mutex
	sub       events.Subscription
	done      chan struct{}
	listening atomic.Bool
}

// New constructs a Listener.
func New(bus events.Bus, props ProposalStore, lookup AnalysisLookup, voter Voter, guard CompletionGuard) *Listener {
	return &Listener{
		Bus:       bus,
		Proposals: props,
		Analyses:  lookup,
		Voter:     voter,
		Guard:     guard,
	}
}

// Start subscribes to all proposal channels and handles events until Stop or ctx ends.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return ErrAlreadyStarted
	}
	sub, err := l.Bus.Subscribe(ctx, events.AllProposalsPattern)
	if err != nil {
		return err
	}
	l.sub = sub
	l.done = make(chan struct{})
	l.listening.Store(true)
	telemetry.Info("listener.started", map[string]any{"pattern": events.AllProposalsPattern})

	go l.loop(ctx, sub, l.done)
	return nil
}

func (l *Listener) loop(ctx context.Context, sub events.Subscription, done chan struct{}) {
	defer close(done)
	defer l.detach(sub)
	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			l.HandleMessage(ctx, msg)
		}
	}
}

// detach clears the subscription when the loop exits without Stop, so Start
// can subscribe again.
func (l *Listener) detach(sub events.Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub == sub {
		l.sub, l.done = nil, nil
		l.listening.Store(false)
	}
}

// Stop unsubscribes and waits for the in-flight event to finish.
func (l *Listener) Stop() error {
	l.mu.Lock()
	sub, done := l.sub, l.done
	l.sub, l.done = nil, nil
	l.mu.Unlock()
	if sub == nil {
		return nil
	}
	err := sub.Close()
	<-done
	l.listening.Store(false)
	telemetry.Info("listener.stopped", nil)
	return err
}

// IsListening reports whether the subscription is live.
func (l *Listener) IsListening() bool {
	return l.listening.Load()
}

// HandleMessage processes one raw bus message. It never panics or returns an
// error; a bad event is logged and dropped.
func (l *Listener) HandleMessage(ctx context.Context, msg events.Message) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncListenerEvent("unknown", "panic")
			telemetry.Error("listener.panic", map[string]any{
				"channel": msg.Channel,
				"panic":   r,
			})
		}
	}()

	ev, err := events.Decode(msg.Payload)
	if err != nil {
		metrics.IncListenerEvent("unknown", "malformed")
		telemetry.Warn("listener.malformed", map[string]any{
			"channel": msg.Channel,
			"error":   err,
		})
		return
	}
	if ev.ProposalID == "" {
		ev.ProposalID = events.ProposalIDFromChannel(msg.Channel)
	}

	switch ev.Type {
	case events.TypeComplete:
		l.handleComplete(ctx, ev)
	case events.TypeFailed:
		l.handleFailed(ctx, ev)
	default:
		metrics.IncListenerEvent(string(ev.Type), "ignored")
	}
}

// ReplayCompletion applies a complete event recovered outside the bus. The
// completion guard makes it a no-op when the live event was already handled.
func (l *Listener) ReplayCompletion(ctx context.Context, ev events.Event) {
	if ev.Type != events.TypeComplete {
		return
	}
	l.handleComplete(ctx, ev)
}

func (l *Listener) handleComplete(ctx context.Context, ev events.Event) {
	fields := map[string]any{
		"proposal_id": ev.ProposalID,
		"job_id":      ev.JobID,
	}
	if !ev.Result.Valid() {
		metrics.IncListenerEvent(string(ev.Type), "invalid")
		telemetry.Warn("listener.complete.missing_result", fields)
		return
	}

	if l.Guard != nil {
		first, err := l.Guard.Claim(ctx, ev.ProposalID, ev.JobID)
		if err != nil {
			telemetry.Warn("listener.complete.guard_failed", withErr(fields, err))
		} else if !first {
			metrics.IncListenerEvent(string(ev.Type), "duplicate")
			telemetry.Info("listener.complete.duplicate", fields)
			return
		}
	}

	proposal, err := l.Proposals.GetByID(ctx, ev.ProposalID)
	if err != nil {
		if errors.Is(err, proposals.ErrNotFound) {
			metrics.IncListenerEvent(string(ev.Type), "not_found")
			telemetry.Warn("listener.complete.proposal_not_found", fields)
			return
		}
		l.release(ctx, ev)
		metrics.IncListenerEvent(string(ev.Type), "error")
		telemetry.Error("listener.complete.load_failed", withErr(fields, err))
		return
	}

	score := *ev.Result.CompositeScore
	req := voting.Request{
		ProposalID:         proposal.ID,
		OnchainProposalID:  proposal.OnchainProposalID,
		DAOGovernor:        proposal.DAOGovernor,
		ChainID:            proposal.ChainID,
		CompositeRiskScore: score,
		RiskLevel:          ev.Result.RiskLevel,
		Recommendation:     ev.Result.Recommendation,
	}
	if l.Analyses != nil {
		if a, err := l.Analyses.GetLatestCompleted(ctx, proposal.ID); err == nil {
			fields["analysis_id"] = a.ID
		} else if !errors.Is(err, analyses.ErrNotFound) {
			telemetry.Warn("listener.complete.analysis_lookup_failed", withErr(fields, err))
		}
	}

	if l.Voter != nil {
		res, err := l.Voter.Execute(ctx, req)
		if err != nil {
			telemetry.Error("listener.complete.voting_failed", withErr(fields, err))
		} else {
			fields["votes_attempted"] = res.VotesAttempted
			fields["votes_successful"] = res.VotesSuccessful
		}
	}

	status := proposals.StatusForRecommendation(ev.Result.Recommendation)
	if err := l.Proposals.UpdateAnalysis(ctx, proposal.ID, status, score, ev.Result.RiskLevel); err != nil {
		metrics.IncListenerEvent(string(ev.Type), "error")
		telemetry.Error("listener.complete.update_failed", withErr(fields, err))
		return
	}
	fields["status"] = string(status)
	fields["composite_score"] = score
	metrics.IncListenerEvent(string(ev.Type), "handled")
	telemetry.Info("listener.complete.handled", fields)
}

func (l *Listener) handleFailed(ctx context.Context, ev events.Event) {
	fields := map[string]any{
		"proposal_id": ev.ProposalID,
		"job_id":      ev.JobID,
		"reason":      ev.Error,
	}
	err := l.Proposals.UpdateStatus(ctx, ev.ProposalID, proposals.StatusPendingAnalysis)
	switch {
	case err == nil:
		metrics.IncListenerEvent(string(ev.Type), "handled")
		telemetry.Info("listener.failed.reset", fields)
	case errors.Is(err, proposals.ErrNotFound):
		metrics.IncListenerEvent(string(ev.Type), "not_found")
		telemetry.Warn("listener.failed.proposal_not_found", fields)
	default:
		metrics.IncListenerEvent(string(ev.Type), "error")
		telemetry.Error("listener.failed.update_failed", withErr(fields, err))
	}
}

func (l *Listener) release(ctx context.Context, ev events.Event) {
	if l.Guard == nil {
		return
	}
	if err := l.Guard.Release(ctx, ev.ProposalID, ev.JobID); err != nil {
		telemetry.Warn("listener.complete.guard_release_failed", map[string]any{
			"proposal_id": ev.ProposalID,
			"job_id":      ev.JobID,
			"error":       err,
		})
	}
}

func withErr(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err
	return out
}
