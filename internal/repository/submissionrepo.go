// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/acoyfellow/tax-agent/internal/model"
)

// SubmissionRepository persists tracked provider submissions.
type SubmissionRepository interface {
	// InsertIfAbsent stores s unless a row with the same ID exists.
	// created is false when the row was already there.
	InsertIfAbsent(ctx context.Context, s model.Submission) (created bool, err error)
	// UpsertStatus sets status, raw records and updated_at for id, creating
	// the row if needed. Nil records leave the stored records unchanged.
	// It returns the status held before the write, or "" if the row did not exist.
	UpsertStatus(ctx context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time) (prev model.SubmissionStatus, err error)
	// AdvanceStatus is UpsertStatus that only writes when the row is absent or
	// prev.Precedes(status). It returns the status held after the call.
	AdvanceStatus(ctx context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time) (stored model.SubmissionStatus, err error)
	// Get loads one submission. Returns errs.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*model.Submission, error)
	// List returns up to limit submissions, most recently updated first.
	List(ctx context.Context, limit int) ([]model.Submission, error)
}
