package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newLimiter(t *testing.T, cfg Config) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	l := NewPG(mock, cfg)
	l.now = func() time.Time { return t0 }
	return l, mock
}

func TestNewPG_Defaults(t *testing.T) {
	l := NewPG(nil, Config{})
	require.Equal(t, DefaultWindow, l.window)
	require.Equal(t, DefaultMaxFails, l.maxFails)
	require.Equal(t, DefaultBlockFor, l.blockFor)
}

func TestHashIP_Stable(t *testing.T) {
	require.Equal(t, HashIP("10.0.0.1"), HashIP("10.0.0.1"))
	require.NotEqual(t, HashIP("10.0.0.1"), HashIP("10.0.0.2"))
	require.Len(t, HashIP(""), 32)
}

func TestAllow(t *testing.T) {
	key := HashIP("10.0.0.1")
	const sel = `SELECT blocked_until FROM callback_limiter WHERE key_hash = \$1`

	tests := []struct {
		name    string
		setup   func(m pgxmock.PgxPoolIface)
		ok      bool
		left    time.Duration
		wantErr bool
	}{
		{
			name:  "unknown sender",
			setup: func(m pgxmock.PgxPoolIface) { m.ExpectQuery(sel).WithArgs(key).WillReturnError(pgx.ErrNoRows) },
			ok:    true,
		},
		{
			name: "block expired",
			setup: func(m pgxmock.PgxPoolIface) {
				m.ExpectQuery(sel).WithArgs(key).
					WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(t0.Add(-time.Second)))
			},
			ok: true,
		},
		{
			name: "blocked",
			setup: func(m pgxmock.PgxPoolIface) {
				m.ExpectQuery(sel).WithArgs(key).
					WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(t0.Add(90 * time.Second)))
			},
			left: 90 * time.Second,
		},
		{
			name:    "store error",
			setup:   func(m pgxmock.PgxPoolIface) { m.ExpectQuery(sel).WithArgs(key).WillReturnError(errors.New("conn reset")) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, mock := newLimiter(t, Config{})
			defer mock.Close()
			tt.setup(mock)

			ok, left, err := l.Allow(context.Background(), key)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.left, left)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSuccess_ResetsCounter(t *testing.T) {
	l, mock := newLimiter(t, Config{})
	defer mock.Close()
	key := HashIP("10.0.0.1")

	mock.ExpectExec(`UPDATE callback_limiter SET fail_count = 0`).WithArgs(key).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Success(context.Background(), key))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BelowThreshold(t *testing.T) {
	l, mock := newLimiter(t, Config{Window: time.Minute, MaxFails: 3, BlockFor: time.Hour})
	defer mock.Close()
	key := HashIP("10.0.0.1")

	mock.ExpectQuery(`INSERT INTO callback_limiter`).WithArgs(key, float64(60)).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))

	blocked, d, err := l.Failure(context.Background(), key)
	require.NoError(t, err)
	if blocked || d != 0 {
		t.Fatalf("want not blocked, got %v %v", blocked, d)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_ReachesThreshold(t *testing.T) {
	l, mock := newLimiter(t, Config{Window: time.Minute, MaxFails: 3, BlockFor: time.Hour})
	defer mock.Close()
	key := HashIP("10.0.0.1")

	mock.ExpectQuery(`INSERT INTO callback_limiter`).WithArgs(key, float64(60)).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE callback_limiter SET blocked_until = \$2 WHERE key_hash = \$1`).
		WithArgs(key, t0.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	blocked, d, err := l.Failure(context.Background(), key)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, time.Hour, d)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_Errors(t *testing.T) {
	key := HashIP("10.0.0.1")

	l, mock := newLimiter(t, Config{MaxFails: 1})
	mock.ExpectQuery(`INSERT INTO callback_limiter`).WillReturnError(errors.New("boom"))
	_, _, err := l.Failure(context.Background(), key)
	require.Error(t, err)
	mock.Close()

	l, mock = newLimiter(t, Config{MaxFails: 1})
	defer mock.Close()
	mock.ExpectQuery(`INSERT INTO callback_limiter`).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(1))
	mock.ExpectExec(`UPDATE callback_limiter SET blocked_until`).WillReturnError(errors.New("boom"))
	blocked, _, err := l.Failure(context.Background(), key)
	require.Error(t, err)
	require.False(t, blocked)
}
