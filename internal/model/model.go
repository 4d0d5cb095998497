// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/acoyfellow/tax-agent/internal/money"
)

// FormType1099NEC is the only form this service files today.
const FormType1099NEC = "1099-NEC"

// Provider classification defaults applied when a request leaves them empty.
const (
	DefaultKindOfEmployer = "NONEAPPLY"
	DefaultKindOfPayer    = "REGULAR941"
)

// TINType is the declared kind of a taxpayer identifier.
type TINType string

const (
	TINTypeSSN TINType = "SSN" // 9 contiguous digits
	TINTypeEIN TINType = "EIN" // NN-NNNNNNN
)

// Address is a US postal address.
type Address struct {
	Line1 string `json:"line1" yaml:"line1"`
	Line2 string `json:"line2,omitempty" yaml:"line2,omitempty"`
	City  string `json:"city" yaml:"city"`
	State string `json:"state" yaml:"state"` // two-letter USPS code
	ZIP   string `json:"zip" yaml:"zip"`     // 12345 or 12345-6789
}

// PartyIdentity describes a payer or a recipient.
type PartyIdentity struct {
	Name         string  `json:"name" yaml:"name"`
	SecondName   string  `json:"second_name,omitempty" yaml:"second_name,omitempty"`
	TIN          string  `json:"tin" yaml:"tin"`
	TINType      TINType `json:"tin_type" yaml:"tin_type"`
	Address      Address `json:"address" yaml:"address"`
	Phone        string  `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email        string  `json:"email,omitempty" yaml:"email,omitempty"`
	BusinessType string  `json:"business_type,omitempty" yaml:"business_type,omitempty"`
}

// FilingRequest is a single 1099-NEC filing candidate.
type FilingRequest struct {
	Payer        PartyIdentity `json:"payer" yaml:"payer"`
	Recipient    PartyIdentity `json:"recipient" yaml:"recipient"`
	Compensation money.Amount  `json:"compensation" yaml:"compensation"`

	HasFederalWithholding bool         `json:"has_federal_withholding" yaml:"has_federal_withholding"`
	FederalWithheld       money.Amount `json:"federal_withheld" yaml:"federal_withheld"`

	StateFiling   bool         `json:"state_filing" yaml:"state_filing"`
	StateCode     string       `json:"state_code,omitempty" yaml:"state_code,omitempty"`
	StateIncome   money.Amount `json:"state_income" yaml:"state_income"`
	StateWithheld money.Amount `json:"state_withheld" yaml:"state_withheld"`

	TaxYear        int    `json:"tax_year" yaml:"tax_year"`
	KindOfEmployer string `json:"kind_of_employer,omitempty" yaml:"kind_of_employer,omitempty"`
	KindOfPayer    string `json:"kind_of_payer,omitempty" yaml:"kind_of_payer,omitempty"`
}

// WithDefaults returns a copy with the provider classification codes filled in.
func (r FilingRequest) WithDefaults() FilingRequest {
	if r.KindOfEmployer == "" {
		r.KindOfEmployer = DefaultKindOfEmployer
	}
	if r.KindOfPayer == "" {
		r.KindOfPayer = DefaultKindOfPayer
	}
	return r
}

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationIssue is a single finding against a field path.
type ValidationIssue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidationResult is the outcome of one validation call. It is built once
// and never mutated afterwards.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Issues   []ValidationIssue `json:"issues"`
	Summary  string            `json:"summary"`
	Reviewer string            `json:"reviewer"`
}

// NewValidationResult derives Valid from the issue list.
func NewValidationResult(issues []ValidationIssue, summary, reviewer string) ValidationResult {
	cp := make([]ValidationIssue, len(issues))
	copy(cp, issues)
	return ValidationResult{
		Valid:    !HasErrors(cp),
		Issues:   cp,
		Summary:  summary,
		Reviewer: reviewer,
	}
}

// SubmissionStatus is the lifecycle state of a provider submission.
type SubmissionStatus string

const (
	StatusCreated     SubmissionStatus = "CREATED"
	StatusTransmitted SubmissionStatus = "TRANSMITTED"
	StatusAccepted    SubmissionStatus = "ACCEPTED"
	StatusRejected    SubmissionStatus = "REJECTED"
	StatusPartial     SubmissionStatus = "PARTIAL"
)

// Terminal reports whether no further transition is expected.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Decided reports whether the provider has ruled on at least one record.
func (s SubmissionStatus) Decided() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusPartial
}

// stage orders statuses along the lifecycle. Unknown and empty sort first.
func (s SubmissionStatus) stage() int {
	switch {
	case s == StatusCreated:
		return 1
	case s == StatusTransmitted:
		return 2
	case s.Decided():
		return 3
	}
	return 0
}

// Precedes reports whether moving from s to next goes forward in the lifecycle.
func (s SubmissionStatus) Precedes(next SubmissionStatus) bool {
	return s.stage() < next.stage()
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusTransmitted, StatusAccepted, StatusRejected, StatusPartial:
		return true
	}
	return false
}

// Submission is a tracked provider submission.
type Submission struct {
	ID        string           `json:"id"` // provider-assigned
	FormType  string           `json:"form_type"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Records   json.RawMessage  `json:"records,omitempty"` // per-record outcomes from the last update
}

// RecordOutcome is one per-record entry reported by the provider.
type RecordOutcome struct {
	RecordID   string        `json:"RecordId"`
	SequenceID string        `json:"SequenceId,omitempty"`
	Status     string        `json:"Status"`
	StatusTime string        `json:"StatusTime,omitempty"`
	Errors     []RecordError `json:"Errors,omitempty"`
}

// DeriveStatus folds per-record outcomes into a submission status: all
// accepted is ACCEPTED, all rejected is REJECTED, any mix of the two is
// PARTIAL. With no decided record the submission stays TRANSMITTED.
func DeriveStatus(records []RecordOutcome) SubmissionStatus {
	var accepted, rejected, pending int
	for _, r := range records {
		switch strings.ToUpper(strings.TrimSpace(r.Status)) {
		case string(StatusAccepted):
			accepted++
		case string(StatusRejected):
			rejected++
		default:
			pending++
		}
	}
	switch {
	case accepted > 0 && rejected > 0:
		return StatusPartial
	case accepted > 0 && pending == 0:
		return StatusAccepted
	case rejected > 0 && pending == 0:
		return StatusRejected
	case accepted > 0 || rejected > 0:
		return StatusPartial
	}
	return StatusTransmitted
}

// RecordError is provider error detail attached to a record.
type RecordError struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Message string `json:"Message"`
}

// AccessToken is a cached provider bearer token.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time // absolute hard expiry
}

// UsableAt reports whether the token can still be attached at now, given a
// safety margin before hard expiry.
func (t AccessToken) UsableAt(now time.Time, skew time.Duration) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-skew))
}
