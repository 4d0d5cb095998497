// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBadSignature indicates a callback whose signature headers are missing or do not match.
	ErrBadSignature = errors.New("bad callback signature")

	// ErrValidationFailed indicates a filing request (or a batch member) did not pass validation.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidArgument indicates malformed caller input (empty id, empty batch, mixed payers).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateLimited indicates a sender locked out after repeated bad signatures.
	ErrRateLimited = errors.New("rate limited")
)
