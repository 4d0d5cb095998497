// Package tracker records provider submissions and applies signed status
// callbacks. Signature verification always happens before any write.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acoyfellow/tax-agent/internal/convert"
	"github.com/acoyfellow/tax-agent/internal/crypto"
	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/provider/wire"
	"github.com/acoyfellow/tax-agent/internal/repository"
)

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Callback header names.
const (
	HeaderSignature = "Signature"
	HeaderTimestamp = "Timestamp"
)

// Service is the submission tracker surface.
type Service interface {
	TrackSubmission(ctx context.Context, id, formType string) error
	UpdateStatus(ctx context.Context, id string, status model.SubmissionStatus, records json.RawMessage) error
	ApplyOutcomes(ctx context.Context, id, formType string, status model.SubmissionStatus, recs []model.RecordOutcome) (model.SubmissionStatus, error)
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, limit int) ([]model.Submission, error)
	HandleCallback(ctx context.Context, signature, timestamp string, body []byte) (model.SubmissionStatus, error)
}

// Tracker implements Service over a SubmissionRepository.
type Tracker struct {
	repo     repository.SubmissionRepository
	secret   []byte
	clientID string
	now      func() time.Time
	log      *zap.Logger
}

var _ Service = (*Tracker)(nil)

// New constructs a Tracker. secret and clientID key callback signatures.
func New(repo repository.SubmissionRepository, secret []byte, clientID string, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{repo: repo, secret: secret, clientID: clientID, now: time.Now, log: log}
}

// TrackSubmission records a newly created submission as CREATED. Tracking an
// id that already exists is a no-op.
func (t *Tracker) TrackSubmission(ctx context.Context, id, formType string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("track: empty submission id: %w", errs.ErrInvalidArgument)
	}
	if formType == "" {
		formType = model.FormType1099NEC
	}
	now := t.now().UTC()
	created, err := t.repo.InsertIfAbsent(ctx, model.Submission{
		ID:        id,
		FormType:  formType,
		Status:    model.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("track %s: %w", id, err)
	}
	if !created {
		t.log.Debug("submission already tracked", zap.String("submission_id", id))
	}
	return nil
}

// UpdateStatus unconditionally upserts status and records for id.
func (t *Tracker) UpdateStatus(ctx context.Context, id string, status model.SubmissionStatus, records json.RawMessage) error {
	return t.apply(ctx, id, model.FormType1099NEC, status, records)
}

func checkUpdate(id string, status model.SubmissionStatus) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("update: empty submission id: %w", errs.ErrInvalidArgument)
	}
	if !status.Valid() {
		return "", fmt.Errorf("update %s: unknown status %q: %w", id, status, errs.ErrInvalidArgument)
	}
	return id, nil
}

func (t *Tracker) apply(ctx context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage) error {
	id, err := checkUpdate(id, status)
	if err != nil {
		return err
	}
	prev, err := t.repo.UpsertStatus(ctx, id, formType, status, records, t.now().UTC())
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if prev.Terminal() && prev != status {
		t.log.Warn("terminal submission status changed",
			zap.String("submission_id", id),
			zap.String("from", string(prev)),
			zap.String("to", string(status)),
		)
	}
	return nil
}

// ApplyOutcomes stores a provider report for id and returns the status held
// afterwards. A report with no decided record only moves the row forward, so
// it never reopens a decided submission; an empty record list keeps the
// stored records.
func (t *Tracker) ApplyOutcomes(
	ctx context.Context, id, formType string, status model.SubmissionStatus, recs []model.RecordOutcome,
) (model.SubmissionStatus, error) {
	var raw json.RawMessage
	if len(recs) > 0 {
		b, err := json.Marshal(recs)
		if err != nil {
			return "", err
		}
		raw = b
	}
	if formType == "" {
		formType = model.FormType1099NEC
	}
	if status.Decided() {
		if err := t.apply(ctx, id, formType, status, raw); err != nil {
			return "", err
		}
		return status, nil
	}

	id, err := checkUpdate(id, status)
	if err != nil {
		return "", err
	}
	stored, err := t.repo.AdvanceStatus(ctx, id, formType, status, raw, t.now().UTC())
	if err != nil {
		return "", fmt.Errorf("update %s: %w", id, err)
	}
	if stored != status {
		t.log.Debug("undecided report left submission unchanged",
			zap.String("submission_id", id),
			zap.String("status", string(stored)),
		)
	}
	return stored, nil
}

// GetSubmission returns errs.ErrNotFound for an unknown id.
func (t *Tracker) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("get: empty submission id: %w", errs.ErrInvalidArgument)
	}
	return t.repo.Get(ctx, id)
}

// ListSubmissions returns the most recently updated submissions. A
// non-positive limit means DefaultListLimit; larger limits are capped.
func (t *Tracker) ListSubmissions(ctx context.Context, limit int) ([]model.Submission, error) {
	return t.repo.List(ctx, ClampLimit(limit))
}

// ClampLimit normalizes a list limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// callback is the provider's status notification body.
type callback struct {
	SubmissionID string              `json:"SubmissionId"`
	FormType     string              `json:"FormType"`
	Records      []wire.RecordStatus `json:"Form1099Records"`
}

// HandleCallback authenticates and applies a provider status callback.
// Missing or mismatched signatures return errs.ErrBadSignature without
// touching storage.
func (t *Tracker) HandleCallback(ctx context.Context, signature, timestamp string, body []byte) (model.SubmissionStatus, error) {
	if !crypto.Verify(t.secret, t.clientID, timestamp, signature) {
		t.log.Warn("callback signature rejected",
			zap.Bool("security", true),
			zap.Bool("has_signature", signature != ""),
			zap.Bool("has_timestamp", timestamp != ""),
		)
		return "", errs.ErrBadSignature
	}

	var cb callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return "", fmt.Errorf("callback body: %w", errs.ErrInvalidArgument)
	}
	if strings.TrimSpace(cb.SubmissionID) == "" {
		return "", fmt.Errorf("callback: missing submission id: %w", errs.ErrInvalidArgument)
	}

	recs := convert.FromRecordStatuses(cb.Records)
	status, err := t.ApplyOutcomes(ctx, cb.SubmissionID, cb.FormType, model.DeriveStatus(recs), recs)
	if err != nil {
		return "", err
	}
	t.log.Info("callback applied",
		zap.String("submission_id", cb.SubmissionID),
		zap.String("status", string(status)),
		zap.Int("records", len(recs)),
	)
	return status, nil
}
