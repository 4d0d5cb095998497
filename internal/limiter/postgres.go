package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Defaults used when Config fields are zero.
const (
	DefaultWindow   = 10 * time.Minute
	DefaultMaxFails = 5
	DefaultBlockFor = 15 * time.Minute
)

// Config bounds the sliding failure window and the lockout.
type Config struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps failure counters in the callback_limiter table.
type PG struct {
	db       querier
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

var _ Limiter = (*PG)(nil)

// NewPG accepts a *pgxpool.Pool or any compatible querier.
func NewPG(db querier, cfg Config) *PG {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxFails <= 0 {
		cfg.MaxFails = DefaultMaxFails
	}
	if cfg.BlockFor <= 0 {
		cfg.BlockFor = DefaultBlockFor
	}
	return &PG{db: db, window: cfg.Window, maxFails: cfg.MaxFails, blockFor: cfg.BlockFor, now: time.Now}
}

func (l *PG) Allow(ctx context.Context, key []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM callback_limiter WHERE key_hash = $1`
	var blockedUntil time.Time
	err := l.db.QueryRow(ctx, q, key).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	if left := blockedUntil.Sub(l.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

func (l *PG) Success(ctx context.Context, key []byte) error {
	const q = `
UPDATE callback_limiter
   SET fail_count = 0, blocked_until = 'epoch', updated_at = now()
 WHERE key_hash = $1`
	_, err := l.db.Exec(ctx, q, key)
	return err
}

func (l *PG) Failure(ctx context.Context, key []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO callback_limiter (key_hash, fail_count, blocked_until, updated_at)
VALUES ($1, 1, 'epoch', now())
ON CONFLICT (key_hash) DO UPDATE
SET fail_count = CASE
        WHEN now() - callback_limiter.updated_at > make_interval(secs => $2) THEN 1
        ELSE callback_limiter.fail_count + 1
    END,
    updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.db.QueryRow(ctx, q, key, l.window.Seconds()).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.maxFails {
		return false, 0, nil
	}

	const upd = `UPDATE callback_limiter SET blocked_until = $2 WHERE key_hash = $1`
	if _, err := l.db.Exec(ctx, upd, key, l.now().Add(l.blockFor)); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
