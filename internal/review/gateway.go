// Package review implements the semantic reviewer gateway: an advisory
// second opinion from an external text-completion service.
//
// The service is treated as untrusted and unreliable. Outbound prompts carry
// only sanitized, masked data inside a labelled untrusted block; responses are
// parsed defensively; reviewer severities are capped at warning. If the call
// itself fails the gateway fails closed with an invalid result.
package review

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/redact"
)

// Field used for gateway-generated issues.
const unavailableField = "semantic_review"

// UnavailableError wraps a failed reviewer call.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return "semantic review unavailable: " + redact.Scrub(e.Err.Error())
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Reviewer is the gateway contract used by the orchestrator.
type Reviewer interface {
	// Review must only be called for requests with no structural errors.
	// The result is always usable; a non-nil error accompanies a fail-closed result.
	Review(ctx context.Context, req model.FilingRequest) (model.ValidationResult, error)
}

// Gateway is the default Reviewer.
type Gateway struct {
	llm  Completer
	name string
	log  *zap.Logger
}

var _ Reviewer = (*Gateway)(nil)

// NewGateway constructs a gateway; name is reported as the result's reviewer id.
func NewGateway(llm Completer, name string, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{llm: llm, name: "semantic:" + name, log: log}
}

// Review asks the external reviewer for advisory issues. It makes a single
// attempt; there is no retry.
func (g *Gateway) Review(ctx context.Context, req model.FilingRequest) (model.ValidationResult, error) {
	text, err := g.llm.Complete(ctx, systemPrompt, buildPrompt(req))
	if err != nil {
		uerr := &UnavailableError{Err: err}
		g.log.Warn("semantic review unavailable", zap.String("err", uerr.Error()))
		return model.NewValidationResult([]model.ValidationIssue{{
			Field:    unavailableField,
			Message:  "semantic review is unavailable; the filing cannot proceed without it",
			Severity: model.SeverityError,
		}}, "Semantic review could not be completed.", g.name), uerr
	}

	p, err := parseResponse(text)
	if err != nil {
		g.log.Warn("semantic review response unparseable", zap.Error(err), zap.Int("len", len(text)))
		return model.NewValidationResult(nil,
			fmt.Sprintf("Semantic review response could not be parsed (%v); no advisory issues recorded.", err),
			g.name), nil
	}

	summary := p.summary
	if summary == "" {
		summary = fmt.Sprintf("Semantic review returned %d advisory issue(s).", len(p.issues))
	}
	return model.NewValidationResult(p.issues, summary, g.name), nil
}
