package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/acoyfellow/tax-agent/internal/redact"
)

// Kind classifies a filing failure for retry policy.
type Kind int

const (
	// KindAuth is a credential problem. Never retried; operators should be alerted.
	KindAuth Kind = iota + 1
	// KindTransient is a throttle, server or network failure. Retried with backoff.
	KindTransient
	// KindBusiness is a provider rejection of this exact payload. Never retried.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindBusiness:
		return "business"
	}
	return "unknown"
}

// Error is the classified error returned by every Client operation.
type Error struct {
	Kind         Kind
	Op           string // create, batch, transmit, status, token
	StatusCode   int    // HTTP status, 0 for network failures
	ProviderCode int    // status code carried in the response body, if any
	Message      string // already scrubbed of identifiers
	Err          error  // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider %s: %s failure", e.Op, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d", e.StatusCode)
		if e.ProviderCode != 0 {
			fmt.Fprintf(&b, ", code %d", e.ProviderCode)
		}
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(redact.Scrub(e.Err.Error()))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the retry loop may try again.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

func kindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// IsAuth reports whether err is an AuthFailure.
func IsAuth(err error) bool { return kindOf(err) == KindAuth }

// IsTransient reports whether err is a TransientFailure.
func IsTransient(err error) bool { return kindOf(err) == KindTransient }

// IsBusiness reports whether err is a BusinessRejection.
func IsBusiness(err error) bool { return kindOf(err) == KindBusiness }

// classifyHTTP maps a non-2xx HTTP status to a Kind.
func classifyHTTP(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests || status >= 500:
		return KindTransient
	default:
		// Remaining 4xx: the payload or path is wrong; resending it cannot help.
		return KindBusiness
	}
}

// failureKind classifies a non-2xx response. A body reporting an auth
// failure wins over the HTTP status.
func failureKind(status, code int, name string) Kind {
	if k, _ := classifyBody(code, name); k == KindAuth {
		return KindAuth
	}
	return classifyHTTP(status)
}

// classifyBody maps the provider status code inside a 2xx response.
// ok is true when the body reports success.
func classifyBody(code int, name string) (kind Kind, ok bool) {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden || strings.EqualFold(name, "Unauthorized"):
		return KindAuth, false
	case code >= 200 && code < 300:
		return 0, true
	default:
		return KindBusiness, false
	}
}
