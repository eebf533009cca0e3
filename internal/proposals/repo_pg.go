package proposals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new proposal.
func (r *PGRepo) Create(ctx context.Context, p Proposal) error {
	const query = `
INSERT INTO proposals (
    id,
    onchain_proposal_id,
    dao_governor,
    chain_id,
    title,
    description,
    proposer_address,
    status,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	_, err := r.DB.ExecContext(ctx, query,
		p.ID,
		p.OnchainProposalID,
		p.DAOGovernor,
		p.ChainID,
		p.Title,
		p.Description,
		p.ProposerAddress,
		string(p.Status),
		p.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

const selectColumns = `
SELECT id, onchain_proposal_id, dao_governor, chain_id, title, description, proposer_address,
       status, composite_risk_score, risk_level, created_at, updated_at
FROM proposals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (Proposal, error) {
	var p Proposal
	var status string
	var onchainID sql.NullString
	var title sql.NullString
	var description sql.NullString
	var proposer sql.NullString
	var score sql.NullFloat64
	var riskLevel sql.NullString
	if err := row.Scan(
		&p.ID,
		&onchainID,
		&p.DAOGovernor,
		&p.ChainID,
		&title,
		&description,
		&proposer,
		&status,
		&score,
		&riskLevel,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Proposal{}, err
	}
	p.Status = Status(status)
	p.OnchainProposalID = onchainID.String
	p.Title = title.String
	p.Description = description.String
	p.ProposerAddress = proposer.String
	if score.Valid {
		v := score.Float64
		p.CompositeRiskScore = &v
	}
	if riskLevel.Valid {
		v := riskLevel.String
		p.RiskLevel = &v
	}
	return p, nil
}

// GetByID returns a proposal by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Proposal, error) {
	p, err := scanProposal(r.DB.QueryRowContext(ctx, selectColumns+`
WHERE id = $1
LIMIT 1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Proposal{}, ErrNotFound
		}
		return Proposal{}, err
	}
	return p, nil
}

// UpdateStatus sets the proposal status.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	const query = `UPDATE proposals SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateAnalysis sets status together with the score snapshot.
func (r *PGRepo) UpdateAnalysis(ctx context.Context, id string, status Status, score float64, riskLevel string) error {
	const query = `
UPDATE proposals
SET status = $2, composite_risk_score = $3, risk_level = $4, updated_at = NOW()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, string(status), score, riskLevel)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListByStatus returns proposals in the given status, oldest first.
func (r *PGRepo) ListByStatus(ctx context.Context, status Status, limit int) ([]Proposal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, selectColumns+`
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
