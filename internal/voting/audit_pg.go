package voting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PGAuditRepo implements AuditRepo using Postgres.
type PGAuditRepo struct {
	DB *sql.DB
}

const insertAuditSQL = `
INSERT INTO vote_audit_records
  (id, proposal_id, delegation_id, delegator_address, vote_type, risk_score, was_auto_vote, tx_hash, success, error_code, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// InsertBatch writes all records in one transaction.
func (r *PGAuditRepo) InsertBatch(ctx context.Context, records []AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertAuditSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			rec.ProposalID,
			rec.DelegationID,
			rec.DelegatorAddress,
			string(rec.VoteType),
			rec.RiskScore,
			rec.WasAutoVote,
			nullString(rec.TxHash),
			rec.Success,
			nullString(rec.ErrorCode),
			nullString(rec.ErrorMessage),
			rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PGAuditRepo) StatsForProposal(ctx context.Context, proposalID string) (VoteStats, error) {
	stats := VoteStats{ProposalID: proposalID}
	err := r.DB.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE success),
  COUNT(*) FILTER (WHERE NOT success),
  COUNT(*) FILTER (WHERE success AND vote_type = 'FOR'),
  COUNT(*) FILTER (WHERE success AND vote_type = 'AGAINST'),
  COUNT(*) FILTER (WHERE success AND vote_type = 'ABSTAIN'),
  COUNT(*) FILTER (WHERE was_auto_vote)
FROM vote_audit_records
WHERE proposal_id = $1`, proposalID).Scan(
		&stats.Attempted,
		&stats.Successful,
		&stats.Failed,
		&stats.For,
		&stats.Against,
		&stats.Abstain,
		&stats.AutoVotes,
	)
	if err != nil {
		return VoteStats{}, err
	}
	return stats, nil
}

func (r *PGAuditRepo) HasVoted(ctx context.Context, delegatorAddress, proposalID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
SELECT EXISTS (
  SELECT 1 FROM vote_audit_records
  WHERE LOWER(delegator_address) = LOWER($1) AND proposal_id = $2 AND success
)`, delegatorAddress, proposalID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
