// Package service orchestrates validation, filing and submission tracking.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/provider"
	"github.com/acoyfellow/tax-agent/internal/review"
	"github.com/acoyfellow/tax-agent/internal/tracker"
	"github.com/acoyfellow/tax-agent/internal/validate"
)

// DefaultMaxBatch bounds the number of requests in one batch call.
const DefaultMaxBatch = 1000

// FilingService defines the filing workflow.
type FilingService interface {
	// Validate runs structural checks and, only if they pass, semantic review.
	Validate(ctx context.Context, req model.FilingRequest) model.ValidationResult
	// ValidateBatch validates every member concurrently; results keep input order.
	ValidateBatch(ctx context.Context, reqs []model.FilingRequest) ([]model.ValidationResult, error)
	// File validates, creates the filing and tracks the new submission.
	File(ctx context.Context, req model.FilingRequest) (FileResult, error)
	// FileBatch files every member in one submission, or none if any is invalid.
	FileBatch(ctx context.Context, reqs []model.FilingRequest) (BatchResult, error)
	// Transmit sends a created submission onward and marks it TRANSMITTED.
	Transmit(ctx context.Context, submissionID string) (model.SubmissionStatus, error)
	// RefreshStatus pulls the provider's view and stores it.
	RefreshStatus(ctx context.Context, submissionID string) (*model.Submission, error)
}

// FileResult is the outcome of File. Validation is always set.
type FileResult struct {
	Validation model.ValidationResult `json:"validation"`
	Submission *model.Submission      `json:"submission,omitempty"`
}

// BatchResult is the outcome of FileBatch.
type BatchResult struct {
	Validations []model.ValidationResult `json:"validations"`
	Submission  *model.Submission        `json:"submission,omitempty"`
}

type FilingServiceImpl struct {
	structural *validate.Validator
	reviewer   review.Reviewer
	filer      provider.Filer
	tracker    tracker.Service
	maxBatch   int
	log        *zap.Logger
}

var _ FilingService = (*FilingServiceImpl)(nil)

// NewFilingService wires the workflow. maxBatch <= 0 means DefaultMaxBatch.
func NewFilingService(
	structural *validate.Validator,
	reviewer review.Reviewer,
	filer provider.Filer,
	tr tracker.Service,
	maxBatch int,
	log *zap.Logger,
) *FilingServiceImpl {
	if structural == nil {
		structural = validate.New()
	}
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FilingServiceImpl{
		structural: structural,
		reviewer:   reviewer,
		filer:      filer,
		tracker:    tr,
		maxBatch:   maxBatch,
		log:        log,
	}
}

// Validate never returns an error; failures are issues in the result.
func (s *FilingServiceImpl) Validate(ctx context.Context, req model.FilingRequest) model.ValidationResult {
	req = req.WithDefaults()

	structural := s.structural.Validate(req)
	if model.HasErrors(structural) {
		return model.NewValidationResult(structural, structuralSummary(structural), validate.ReviewerName)
	}

	sem, err := s.reviewer.Review(ctx, req)
	if err != nil {
		s.log.Warn("validation failed closed", zap.Error(err))
	}

	issues := make([]model.ValidationIssue, 0, len(structural)+len(sem.Issues))
	issues = append(issues, structural...)
	issues = append(issues, sem.Issues...)
	return model.NewValidationResult(issues, sem.Summary, validate.ReviewerName+"+"+sem.Reviewer)
}

// ValidateBatch fans out one goroutine per member and joins.
func (s *FilingServiceImpl) ValidateBatch(ctx context.Context, reqs []model.FilingRequest) ([]model.ValidationResult, error) {
	if err := s.checkBatch(reqs); err != nil {
		return nil, err
	}
	out := make([]model.ValidationResult, len(reqs))
	var g errgroup.Group
	for i := range reqs {
		g.Go(func() error {
			out[i] = s.Validate(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// File files a single request.
func (s *FilingServiceImpl) File(ctx context.Context, req model.FilingRequest) (FileResult, error) {
	req = req.WithDefaults()
	res := FileResult{Validation: s.Validate(ctx, req)}
	if !res.Validation.Valid {
		return res, fmt.Errorf("file: %w", errs.ErrValidationFailed)
	}

	sub, err := s.filer.CreateFiling(ctx, req)
	if err != nil {
		s.logFilingError("create", err)
		return res, err
	}
	res.Submission = &sub
	return res, s.track(ctx, sub)
}

// FileBatch files all members in one submission.
func (s *FilingServiceImpl) FileBatch(ctx context.Context, reqs []model.FilingRequest) (BatchResult, error) {
	if err := s.checkBatch(reqs); err != nil {
		return BatchResult{}, err
	}
	withDefaults := make([]model.FilingRequest, len(reqs))
	for i, r := range reqs {
		withDefaults[i] = r.WithDefaults()
	}

	results, err := s.ValidateBatch(ctx, withDefaults)
	if err != nil {
		return BatchResult{}, err
	}
	res := BatchResult{Validations: results}

	var invalid []string
	for i, r := range results {
		if !r.Valid {
			invalid = append(invalid, fmt.Sprintf("item[%d]", i))
		}
	}
	if len(invalid) > 0 {
		return res, fmt.Errorf("file batch: %s: %w", strings.Join(invalid, ", "), errs.ErrValidationFailed)
	}

	sub, err := s.filer.CreateBatch(ctx, withDefaults)
	if err != nil {
		s.logFilingError("batch", err)
		return res, err
	}
	res.Submission = &sub
	return res, s.track(ctx, sub)
}

// track records a created submission even if the caller has gone away.
func (s *FilingServiceImpl) track(ctx context.Context, sub model.Submission) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.tracker.TrackSubmission(ctx, sub.ID, sub.FormType); err != nil {
		s.log.Error("submission created but not tracked", zap.String("submission_id", sub.ID), zap.Error(err))
		return fmt.Errorf("submission %s created but not tracked: %w", sub.ID, err)
	}
	if len(sub.Records) > 0 {
		if err := s.tracker.UpdateStatus(ctx, sub.ID, sub.Status, sub.Records); err != nil {
			s.log.Warn("submission records not stored", zap.String("submission_id", sub.ID), zap.Error(err))
		}
	}
	s.log.Info("submission created", zap.String("submission_id", sub.ID), zap.String("form_type", sub.FormType))
	return nil
}

// Transmit requires the submission to be tracked. It returns the stored
// status, which stays put if the submission was already decided.
func (s *FilingServiceImpl) Transmit(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	if _, err := s.tracker.GetSubmission(ctx, submissionID); err != nil {
		return "", fmt.Errorf("transmit %s: %w", submissionID, err)
	}
	st, err := s.filer.Transmit(ctx, submissionID)
	if err != nil {
		s.logFilingError("transmit", err)
		return "", err
	}
	stored, err := s.tracker.ApplyOutcomes(context.WithoutCancel(ctx), submissionID, "", st, nil)
	if err != nil {
		return "", fmt.Errorf("transmit %s: %w", submissionID, err)
	}
	return stored, nil
}

// RefreshStatus stores the provider's current status for submissionID. A
// report with no decided record never moves a submission backwards.
func (s *FilingServiceImpl) RefreshStatus(ctx context.Context, submissionID string) (*model.Submission, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, fmt.Errorf("refresh: empty submission id: %w", errs.ErrInvalidArgument)
	}
	rep, err := s.filer.GetStatus(ctx, submissionID)
	if err != nil {
		s.logFilingError("status", err)
		return nil, err
	}
	if _, err := s.tracker.ApplyOutcomes(ctx, submissionID, rep.FormType, rep.Status, rep.Records); err != nil {
		return nil, fmt.Errorf("refresh %s: %w", submissionID, err)
	}
	return s.tracker.GetSubmission(ctx, submissionID)
}

func (s *FilingServiceImpl) checkBatch(reqs []model.FilingRequest) error {
	if len(reqs) == 0 {
		return fmt.Errorf("empty batch: %w", errs.ErrInvalidArgument)
	}
	if len(reqs) > s.maxBatch {
		return fmt.Errorf("batch too large (%d > %d): %w", len(reqs), s.maxBatch, errs.ErrInvalidArgument)
	}
	return nil
}

func (s *FilingServiceImpl) logFilingError(op string, err error) {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		s.log.Error("filing failed", zap.String("op", op), zap.Error(err))
		return
	}
	fields := []zap.Field{zap.String("op", op), zap.Stringer("kind", pe.Kind), zap.Error(err)}
	if pe.Kind == provider.KindAuth {
		s.log.Error("filing provider credentials rejected", fields...)
		return
	}
	s.log.Warn("filing failed", fields...)
}

func structuralSummary(issues []model.ValidationIssue) string {
	var e, w, i int
	for _, is := range issues {
		switch is.Severity {
		case model.SeverityError:
			e++
		case model.SeverityWarning:
			w++
		default:
			i++
		}
	}
	return fmt.Sprintf("Structural validation found %d error(s), %d warning(s), %d info; semantic review skipped.", e, w, i)
}
