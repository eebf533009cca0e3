package delegations

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `
SELECT id, delegator_address, dao_governor, chain_id, risk_threshold, requires_approval, status, created_at, updated_at
FROM delegations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelegation(row rowScanner) (Delegation, error) {
	var d Delegation
	var status string
	if err := row.Scan(
		&d.ID,
		&d.DelegatorAddress,
		&d.DAOGovernor,
		&d.ChainID,
		&d.RiskThreshold,
		&d.RequiresApproval,
		&status,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return Delegation{}, err
	}
	d.Status = Status(status)
	return d, nil
}

// ListActive returns ACTIVE delegations for the governor, oldest first.
func (r *PGRepo) ListActive(ctx context.Context, daoGovernor string, chainID int64) ([]Delegation, error) {
	rows, err := r.DB.QueryContext(ctx, selectColumns+`
WHERE LOWER(dao_governor) = LOWER($1) AND chain_id = $2 AND status = 'ACTIVE'
ORDER BY created_at ASC`, daoGovernor, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Delegation, 0)
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByKey returns the delegation for key regardless of status.
func (r *PGRepo) GetByKey(ctx context.Context, key Key) (Delegation, error) {
	k := key.Normalized()
	d, err := scanDelegation(r.DB.QueryRowContext(ctx, selectColumns+`
WHERE delegator_address = $1 AND dao_governor = $2 AND chain_id = $3
LIMIT 1`, k.DelegatorAddress, k.DAOGovernor, k.ChainID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Delegation{}, ErrNotFound
		}
		return Delegation{}, err
	}
	return d, nil
}

// Upsert creates or reactivates a delegation with new settings.
func (r *PGRepo) Upsert(ctx context.Context, d Delegation) (Delegation, error) {
	if !ValidThreshold(d.RiskThreshold) {
		return Delegation{}, ErrInvalidThreshold
	}
	k := d.Key().Normalized()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	const query = `
INSERT INTO delegations (
    id, delegator_address, dao_governor, chain_id, risk_threshold, requires_approval, status, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 'ACTIVE', $7, $7)
ON CONFLICT (delegator_address, dao_governor, chain_id) DO UPDATE
SET risk_threshold = EXCLUDED.risk_threshold,
    requires_approval = EXCLUDED.requires_approval,
    status = 'ACTIVE',
    updated_at = EXCLUDED.updated_at
RETURNING id, delegator_address, dao_governor, chain_id, risk_threshold, requires_approval, status, created_at, updated_at`

	return scanDelegation(r.DB.QueryRowContext(ctx, query,
		d.ID,
		k.DelegatorAddress,
		k.DAOGovernor,
		k.ChainID,
		d.RiskThreshold,
		d.RequiresApproval,
		now,
	))
}

// Revoke marks the delegation REVOKED. It is never deleted.
func (r *PGRepo) Revoke(ctx context.Context, key Key) error {
	k := key.Normalized()
	const query = `
UPDATE delegations SET status = 'REVOKED', updated_at = NOW()
WHERE delegator_address = $1 AND dao_governor = $2 AND chain_id = $3`
	res, err := r.DB.ExecContext(ctx, query, k.DelegatorAddress, k.DAOGovernor, k.ChainID)
	if err != nil {
		return err
	}
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
