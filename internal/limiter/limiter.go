// Package limiter locks out webhook senders that keep presenting bad signatures.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks signature failures per sender key.
type Limiter interface {
	// Allow reports whether the sender may be heard and, if not, for how long it stays blocked.
	Allow(ctx context.Context, key []byte) (bool, time.Duration, error)
	// Success resets the sender's failure count.
	Success(ctx context.Context, key []byte) error
	// Failure records a rejected callback and reports whether the sender is now blocked.
	Failure(ctx context.Context, key []byte) (bool, time.Duration, error)
}

// HashIP keys a sender by address without storing the address itself.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
