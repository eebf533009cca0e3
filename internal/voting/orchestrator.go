package voting

import (
	"context"
	"fmt"
	"math"
	"time"

	"guarddog-backend/internal/delegations"
	"guarddog-backend/internal/shared/metrics"
	"guarddog-backend/internal/shared/telemetry"
)

// DelegationLister loads the delegations a governor's proposal may be voted for.
type DelegationLister interface {
	ListActive(ctx context.Context, daoGovernor string, chainID int64) ([]delegations.Delegation, error)
}

// Orchestrator casts auto votes for eligible delegations and records every attempt.
type Orchestrator struct {
	Delegations     DelegationLister
	Contract        Contract
	Audit           AuditRepo
	ReviewSafeScore float64
	Now             func() time.Time
}

// NewOrchestrator constructs an Orchestrator. A nil contract disables voting.
func NewOrchestrator(lister DelegationLister, contract Contract, audit AuditRepo, reviewSafeScore float64) *Orchestrator {
	if reviewSafeScore <= 0 {
		reviewSafeScore = DefaultReviewSafeScore
	}
	return &Orchestrator{
		Delegations:     lister,
		Contract:        contract,
		Audit:           audit,
		ReviewSafeScore: reviewSafeScore,
		Now:             time.Now,
	}
}

// Execute runs one voting pass. Vote failures are reported in the Result;
// the error is reserved for failing to load delegations.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (Result, error) {
	result := Result{PerVoteResults: []VoteResult{}}

	if o.Contract == nil || !o.Contract.Ready() {
		telemetry.Warn("voting.skipped", map[string]any{
			"proposal_id": req.ProposalID,
			"reason":      "contract_not_configured",
		})
		return result, nil
	}
	if req.OnchainProposalID == "" {
		telemetry.Warn("voting.skipped", map[string]any{
			"proposal_id": req.ProposalID,
			"reason":      "missing_onchain_proposal_id",
		})
		return result, nil
	}

	all, err := o.Delegations.ListActive(ctx, req.DAOGovernor, req.ChainID)
	if err != nil {
		return result, fmt.Errorf("load delegations: %w", err)
	}
	result.TotalDelegations = len(all)

	eligible := make([]delegations.Delegation, 0, len(all))
	for _, d := range all {
		if IsEligible(d, req.CompositeRiskScore) {
			eligible = append(eligible, d)
		}
	}
	result.EligibleDelegations = len(eligible)
	if len(eligible) == 0 {
		telemetry.Info("voting.no_eligible", map[string]any{
			"proposal_id": req.ProposalID,
			"total":       result.TotalDelegations,
			"risk_score":  req.CompositeRiskScore,
		})
		return result, nil
	}

	support := DetermineVoteSupport(req.Recommendation, req.CompositeRiskScore, o.ReviewSafeScore)
	score := contractScore(req.CompositeRiskScore)

	if len(eligible) == 1 {
		result.PerVoteResults = append(result.PerVoteResults, o.castOne(ctx, req.OnchainProposalID, eligible[0], support, score))
	} else {
		txHash, err := o.castBatch(ctx, req.OnchainProposalID, eligible, support, score)
		if err == nil {
			result.BatchTxHash = txHash
			for _, d := range eligible {
				result.PerVoteResults = append(result.PerVoteResults, VoteResult{
					DelegationID:     d.ID,
					DelegatorAddress: d.DelegatorAddress,
					VoteType:         support,
					Success:          true,
					TxHash:           txHash,
				})
			}
		} else {
			metrics.IncBatchFallback()
			telemetry.Warn("voting.batch_failed", map[string]any{
				"proposal_id": req.ProposalID,
				"eligible":    len(eligible),
				"error":       err.Error(),
			})
			for _, d := range eligible {
				result.PerVoteResults = append(result.PerVoteResults, o.castOne(ctx, req.OnchainProposalID, d, support, score))
			}
		}
	}

	result.VotesAttempted = len(result.PerVoteResults)
	for _, vr := range result.PerVoteResults {
		if vr.Success {
			result.VotesSuccessful++
		} else {
			result.VotesFailed++
		}
	}
	metrics.AddVotes(result.VotesSuccessful, result.VotesFailed)

	o.writeAudit(ctx, req, result.PerVoteResults)

	telemetry.Info("voting.completed", map[string]any{
		"proposal_id":  req.ProposalID,
		"vote_type":    string(support),
		"eligible":     result.EligibleDelegations,
		"successful":   result.VotesSuccessful,
		"failed":       result.VotesFailed,
		"batch_tx":     result.BatchTxHash,
		"total_active": result.TotalDelegations,
	})
	return result, nil
}

func (o *Orchestrator) castOne(ctx context.Context, onchainID string, d delegations.Delegation, support VoteType, score uint64) VoteResult {
	vr := VoteResult{
		DelegationID:     d.ID,
		DelegatorAddress: d.DelegatorAddress,
		VoteType:         support,
	}
	pending, err := o.Contract.CastVote(ctx, onchainID, support, score)
	if err == nil {
		vr.TxHash, err = pending.Wait(ctx)
	}
	if err != nil {
		vr.ErrorCode = ParseVoteError(err.Error())
		vr.ErrorMessage = err.Error()
		vr.TxHash = ""
		return vr
	}
	vr.Success = true
	return vr
}

func (o *Orchestrator) castBatch(ctx context.Context, onchainID string, eligible []delegations.Delegation, support VoteType, score uint64) (string, error) {
	addrs := make([]string, len(eligible))
	supports := make([]VoteType, len(eligible))
	scores := make([]uint64, len(eligible))
	for i, d := range eligible {
		addrs[i] = d.DelegatorAddress
		supports[i] = support
		scores[i] = score
	}
	pending, err := o.Contract.BatchCastVotes(ctx, onchainID, addrs, supports, scores)
	if err != nil {
		return "", err
	}
	return pending.Wait(ctx)
}

func (o *Orchestrator) writeAudit(ctx context.Context, req Request, votes []VoteResult) {
	if o.Audit == nil || len(votes) == 0 {
		return
	}
	now := o.now()
	records := make([]AuditRecord, 0, len(votes))
	for _, vr := range votes {
		rec := AuditRecord{
			ProposalID:       req.ProposalID,
			DelegationID:     vr.DelegationID,
			DelegatorAddress: vr.DelegatorAddress,
			VoteType:         vr.VoteType,
			RiskScore:        req.CompositeRiskScore,
			WasAutoVote:      true,
			Success:          vr.Success,
			CreatedAt:        now,
		}
		if vr.TxHash != "" {
			rec.TxHash = strPtr(vr.TxHash)
		}
		if vr.ErrorCode != "" {
			rec.ErrorCode = strPtr(string(vr.ErrorCode))
			rec.ErrorMessage = strPtr(vr.ErrorMessage)
		}
		records = append(records, rec)
	}
	if err := o.Audit.InsertBatch(ctx, records); err != nil {
		telemetry.Error("voting.audit_failed", map[string]any{
			"proposal_id": req.ProposalID,
			"records":     len(records),
			"error":       err.Error(),
		})
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// contractScore rounds a composite score into the contract's 0..100 integer range.
func contractScore(score float64) uint64 {
	rounded := math.Round(score)
	switch {
	case rounded < 0 || math.IsNaN(rounded):
		return 0
	case rounded > 100:
		return 100
	}
	return uint64(rounded)
}

func strPtr(s string) *string { return &s }
