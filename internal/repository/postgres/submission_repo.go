package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/repository"
)

var _ repository.SubmissionRepository = (*SubmissionRepo)(nil)

// SubmissionRepo implements SubmissionRepository using PostgreSQL.
type SubmissionRepo struct{ db *DB }

// NewSubmissionRepo constructs a submission repository.
func NewSubmissionRepo(db *DB) *SubmissionRepo { return &SubmissionRepo{db: db} }

// InsertIfAbsent inserts the row or does nothing on an existing id.
func (r *SubmissionRepo) InsertIfAbsent(ctx context.Context, s model.Submission) (bool, error) {
	const q = `
INSERT INTO submissions (id, form_type, status, records, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, s.ID, s.FormType, string(s.Status), nullJSON(s.Records), s.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertStatus locks the row (if any), then writes the new status. A nil
// records payload keeps the stored one.
func (r *SubmissionRepo) UpsertStatus(
	ctx context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time,
) (model.SubmissionStatus, error) {
	prev, _, err := r.writeStatus(ctx, id, formType, status, records, at, false)
	return prev, err
}

// AdvanceStatus writes only when status moves the row forward.
func (r *SubmissionRepo) AdvanceStatus(
	ctx context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time,
) (model.SubmissionStatus, error) {
	prev, written, err := r.writeStatus(ctx, id, formType, status, records, at, true)
	if err != nil || !written {
		return prev, err
	}
	return status, nil
}

func (r *SubmissionRepo) writeStatus(
	ctx context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time, forwardOnly bool,
) (prev model.SubmissionStatus, written bool, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			prev, written, err = "", false, e
		}
	}()

	var cur string
	scanErr := tx.QueryRow(ctx, `SELECT status FROM submissions WHERE id=$1 FOR UPDATE`, id).Scan(&cur)
	if scanErr != nil && !errors.Is(scanErr, pgx.ErrNoRows) {
		return "", false, scanErr
	}
	prev = model.SubmissionStatus(cur)
	if forwardOnly && prev != "" && !prev.Precedes(status) {
		return prev, false, nil
	}

	const q = `
INSERT INTO submissions (id, form_type, status, records, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    records = COALESCE(EXCLUDED.records, submissions.records),
    updated_at = EXCLUDED.updated_at`
	if _, err = tx.Exec(ctx, q, id, formType, string(status), nullJSON(records), at); err != nil {
		return "", false, err
	}
	return prev, true, nil
}

// Get selects one submission by id.
func (r *SubmissionRepo) Get(ctx context.Context, id string) (*model.Submission, error) {
	const q = `
SELECT id, form_type, status, records, created_at, updated_at
FROM submissions WHERE id=$1`
	s, err := scanSubmission(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List selects the most recently updated submissions.
func (r *SubmissionRepo) List(ctx context.Context, limit int) ([]model.Submission, error) {
	const q = `
SELECT id, form_type, status, records, created_at, updated_at
FROM submissions
ORDER BY updated_at DESC, id
LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Submission, 0, limit)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubmission(row pgx.Row) (model.Submission, error) {
	var (
		s       model.Submission
		status  string
		records []byte
	)
	if err := row.Scan(&s.ID, &s.FormType, &status, &records, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Submission{}, err
	}
	s.Status = model.SubmissionStatus(status)
	if len(records) > 0 {
		s.Records = json.RawMessage(records)
	}
	return s, nil
}

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
