package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrQuotaExceeded indicates the local request budget for a scope is spent
var ErrQuotaExceeded = errors.New("request quota exceeded")

// DB interface for database operations
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// QuotaGuard provides PostgreSQL-based request budgeting with a sliding
// window. It is used to stop outbound feed searches before the provider
// starts rejecting them.
type QuotaGuard struct {
	db     DB
	window time.Duration
}

// NewQuotaGuard creates a new quota guard with a sliding window
func NewQuotaGuard(db *pgxpool.Pool, window time.Duration) *QuotaGuard {
	return &QuotaGuard{
		db:     db,
		window: window,
	}
}

// NewQuotaGuardWithDB creates a quota guard with custom DB interface
func NewQuotaGuardWithDB(db DB, window time.Duration) *QuotaGuard {
	return &QuotaGuard{
		db:     db,
		window: window,
	}
}

// Allow records one request against the scope's budget and returns
// ErrQuotaExceeded once the window's count passes the limit. A limit of
// zero or less disables the guard.
func (g *QuotaGuard) Allow(ctx context.Context, scope string, limit int) error {
	if limit <= 0 {
		return nil // No limit configured
	}

	now := time.Now()
	windowStart := now.Add(-g.window)
	key := fmt.Sprintf("quota:%s", scope)

	// Use ON CONFLICT to atomically increment or insert counter
	query := `
		WITH current_count AS (
			INSERT INTO quota_counters (key, count, window_start, window_end)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (key)
			DO UPDATE SET
				count = CASE
					WHEN quota_counters.window_end < $2 THEN 1
					ELSE quota_counters.count + 1
				END,
				window_start = CASE
					WHEN quota_counters.window_end < $2 THEN $2
					ELSE quota_counters.window_start
				END,
				window_end = $3
			RETURNING count, window_start
		)
		SELECT count FROM current_count
	`

	var count int
	err := g.db.QueryRow(ctx, query, key, windowStart, now).Scan(&count)
	if err != nil {
		return fmt.Errorf("check quota: %w", err)
	}

	if count > limit {
		return fmt.Errorf("%w: %d/%d requests in window", ErrQuotaExceeded, count, limit)
	}

	return nil
}

// CleanupExpired removes expired quota counters (run via cron)
func (g *QuotaGuard) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM quota_counters WHERE window_end < NOW() - INTERVAL '1 hour'`
	result, err := g.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// CurrentCount returns the live count for a scope (for monitoring)
func (g *QuotaGuard) CurrentCount(ctx context.Context, scope string) (int, error) {
	key := fmt.Sprintf("quota:%s", scope)
	windowStart := time.Now().Add(-g.window)

	query := `
		SELECT count
		FROM quota_counters
		WHERE key = $1 AND window_end > $2
	`

	var count int
	err := g.db.QueryRow(ctx, query, key, windowStart).Scan(&count)
	if err != nil {
		return 0, nil // No records = 0 count
	}

	return count, nil
}

// Reset clears the counter for a scope
func (g *QuotaGuard) Reset(ctx context.Context, scope string) error {
	key := fmt.Sprintf("quota:%s", scope)
	query := `DELETE FROM quota_counters WHERE key = $1`
	_, err := g.db.Exec(ctx, query, key)
	return err
}
