package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `
SELECT id, proposal_id, job_id, status, composite_score, risk_level, recommendation,
       agent_breakdown, raw_key, error_message, started_at, completed_at, created_at
FROM analyses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a           Analysis
		score       sql.NullFloat64
		level       sql.NullString
		rec         sql.NullString
		breakdown   []byte
		rawKey      sql.NullString
		errMsg      sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.ProposalID,
		&a.JobID,
		&a.Status,
		&score,
		&level,
		&rec,
		&breakdown,
		&rawKey,
		&errMsg,
		&startedAt,
		&completedAt,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if score.Valid {
		a.CompositeScore = &score.Float64
	}
	if level.Valid {
		a.RiskLevel = &level.String
	}
	if rec.Valid {
		a.Recommendation = &rec.String
	}
	if len(breakdown) > 0 {
		a.AgentBreakdown = json.RawMessage(breakdown)
	}
	if rawKey.Valid {
		a.RawKey = &rawKey.String
	}
	if errMsg.Valid {
		a.ErrorMessage = &errMsg.String
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO analyses (id, proposal_id, job_id, status, started_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ProposalID, a.JobID, a.Status, nullTime(a.StartedAt), a.CreatedAt)
	return err
}

// GetByID returns an analysis by its ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	return scanAnalysis(r.DB.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
}

func (r *PGRepo) GetLatestCompleted(ctx context.Context, proposalID string) (Analysis, error) {
	return scanAnalysis(r.DB.QueryRowContext(ctx, selectColumns+`
WHERE proposal_id = $1 AND status = 'completed'
ORDER BY completed_at DESC
LIMIT 1`, proposalID))
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id, status string, errorMessage *string, completedAt *time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE analyses
SET status = $2,
    error_message = COALESCE($3, error_message),
    completed_at = COALESCE($4, completed_at)
WHERE id = $1`, id, status, nullString(errorMessage), nullTime(completedAt))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) UpdateResult(ctx context.Context, id string, out Outcome, completedAt time.Time) error {
	var breakdown any
	if len(out.AgentBreakdown) > 0 {
		breakdown = []byte(out.AgentBreakdown)
	}
	var rawKey *string
	if out.RawKey != "" {
		rawKey = &out.RawKey
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE analyses
SET status = 'completed',
    composite_score = $2,
    risk_level = $3,
    recommendation = $4,
    agent_breakdown = $5,
    raw_key = $6,
    completed_at = $7
WHERE id = $1`, id, out.CompositeScore, out.RiskLevel, out.Recommendation, breakdown, nullString(rawKey), completedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
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

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
