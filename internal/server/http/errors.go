package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/provider"
	"github.com/acoyfellow/tax-agent/internal/redact"
)

type errorBody struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Validation any    `json:"validation,omitempty"`
}

// statusOf maps domain and filing errors to an HTTP status and kind label.
func statusOf(err error) (int, string) {
	var pe *provider.Error
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrBadSignature):
		return http.StatusUnauthorized, "bad_signature"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, errs.ErrValidationFailed):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.As(err, &pe):
		switch pe.Kind {
		case provider.KindAuth:
			return http.StatusBadGateway, "provider_auth"
		case provider.KindTransient:
			return http.StatusServiceUnavailable, "provider_unavailable"
		default:
			return http.StatusUnprocessableEntity, "provider_rejected"
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeError responds with a scrubbed message and, when given, the
// validation outcome that preceded the failure.
func writeError(c *gin.Context, err error, validation any) {
	code, kind := statusOf(err)
	msg := redact.Scrub(err.Error())
	if code == http.StatusInternalServerError {
		msg = "internal"
	}
	c.AbortWithStatusJSON(code, errorBody{Error: msg, Kind: kind, Validation: validation})
}
