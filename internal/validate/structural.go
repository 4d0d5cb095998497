// Package validate implements the structural rule engine that gates every filing.
//
// Rules are independent and all of them run, so a caller sees every problem
// at once. The engine never decides whether a request may proceed; callers
// check model.HasErrors on the returned list.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/money"
)

// ReviewerName identifies structural results.
const ReviewerName = "structural"

// ReportingThreshold is the statutory 1099-NEC reporting floor.
var ReportingThreshold = money.MustParse("600")

var (
	ssnPattern = regexp.MustCompile(`^\d{9}$`)
	einPattern = regexp.MustCompile(`^\d{2}-\d{7}$`)
	zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// StateCodes is the set of accepted two-letter codes: 50 states, DC, and territories.
var StateCodes = func() map[string]struct{} {
	codes := strings.Fields(`
AL AK AZ AR CA CO CT DE FL GA HI ID IL IN IA KS KY LA ME MD MA MI MN MS MO
MT NE NV NH NJ NM NY NC ND OH OK OR PA RI SC SD TN TX UT VT VA WA WV WI WY
DC AS GU MP PR VI`)
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}()

// IsStateCode reports membership in StateCodes (case-sensitive, upper).
func IsStateCode(code string) bool {
	_, ok := StateCodes[code]
	return ok
}

// Validator runs the structural rules against a clock.
type Validator struct {
	now func() time.Time
}

// New returns a Validator using the wall clock.
func New() *Validator { return &Validator{now: time.Now} }

// NewWithClock returns a Validator with an injected clock.
func NewWithClock(now func() time.Time) *Validator { return &Validator{now: now} }

// Validate returns every structural issue, in rule order.
func (v *Validator) Validate(req model.FilingRequest) []model.ValidationIssue {
	return Structure(req, v.now())
}

// Structure is the pure rule engine. now only affects the tax-year rule.
func Structure(req model.FilingRequest, now time.Time) []model.ValidationIssue {
	var c collector

	c.party("payer", req.Payer)
	c.party("recipient", req.Recipient)

	if !req.Compensation.IsPositive() {
		c.add("compensation", model.SeverityError, "compensation must be greater than zero")
	} else if req.Compensation.Cmp(ReportingThreshold) < 0 {
		c.add("compensation", model.SeverityInfo,
			fmt.Sprintf("compensation is below the %s reporting threshold; filing is optional", ReportingThreshold.WireString()))
	}

	if req.HasFederalWithholding && !req.FederalWithheld.IsPositive() {
		c.add("federal_withheld", model.SeverityError, "federal withholding is flagged but the withheld amount is not positive")
	}

	if req.StateFiling {
		switch {
		case strings.TrimSpace(req.StateCode) == "":
			c.add("state_code", model.SeverityError, "state code is required when state filing is requested")
		case !IsStateCode(req.StateCode):
			c.add("state_code", model.SeverityError, fmt.Sprintf("unknown state code %q", req.StateCode))
		}
		if !req.StateIncome.IsSet() {
			c.add("state_income", model.SeverityWarning, "state income not provided; compensation will be reported as state income")
		}
	}

	year := now.Year()
	if req.TaxYear != year && req.TaxYear != year-1 {
		c.add("tax_year", model.SeverityWarning,
			fmt.Sprintf("tax year %d is outside the current filing window (%d or %d)", req.TaxYear, year-1, year))
	}

	return c.issues
}

type collector struct {
	issues []model.ValidationIssue
}

func (c *collector) add(field string, sev model.Severity, msg string) {
	c.issues = append(c.issues, model.ValidationIssue{Field: field, Message: msg, Severity: sev})
}

func (c *collector) party(prefix string, p model.PartyIdentity) {
	if strings.TrimSpace(p.Name) == "" {
		c.add(prefix+".name", model.SeverityError, "name is required")
	}

	switch p.TINType {
	case model.TINTypeSSN:
		if !ssnPattern.MatchString(p.TIN) {
			c.add(prefix+".tin", model.SeverityError, "SSN must be exactly 9 digits with no separators")
		}
	case model.TINTypeEIN:
		if !einPattern.MatchString(p.TIN) {
			c.add(prefix+".tin", model.SeverityError, "EIN must match NN-NNNNNNN")
		}
	default:
		c.add(prefix+".tin_type", model.SeverityError, fmt.Sprintf("unsupported identifier kind %q", p.TINType))
	}

	if !IsStateCode(p.Address.State) {
		c.add(prefix+".address.state", model.SeverityError, fmt.Sprintf("unknown state code %q", p.Address.State))
	}
	if !zipPattern.MatchString(p.Address.ZIP) {
		c.add(prefix+".address.zip", model.SeverityError, "ZIP must be 5 digits or ZIP+4")
	}

	if p.Phone != "" {
		n := countDigits(p.Phone)
		if n != 10 && !(n == 11 && strings.HasPrefix(strings.TrimLeft(p.Phone, "+ ("), "1")) {
			c.add(prefix+".phone", model.SeverityError, "phone must contain 10 digits")
		}
	}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
