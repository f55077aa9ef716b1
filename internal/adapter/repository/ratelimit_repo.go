package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// hitSQL counts the window and inserts the new hit only while the count is
// below the limit, in one statement.
const hitSQL = `
WITH win AS (
	SELECT count(*) AS n, min(created_at) AS oldest
	FROM rate_limit_hit
	WHERE identifier = $1::text AND created_at >= $2::timestamptz
), ins AS (
	INSERT INTO rate_limit_hit (identifier, created_at)
	SELECT $1::text, $3::timestamptz FROM win WHERE win.n < $4::bigint
	RETURNING created_at
)
SELECT win.n, win.oldest, (SELECT count(*) FROM ins) FROM win`

type RateLimitRepo struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepo(pool *pgxpool.Pool) *RateLimitRepo {
	return &RateLimitRepo{pool: pool}
}

// Hit serializes callers per identifier with a transaction-scoped advisory
// lock around the count-and-insert statement.
func (r *RateLimitRepo) Hit(ctx context.Context, identifier string, limit int, since, now time.Time) (bool, int, time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, time.Time{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, identifier); err != nil {
		return false, 0, time.Time{}, err
	}

	var (
		count    int64
		oldest   *time.Time
		inserted int64
	)
	if err := tx.QueryRow(ctx, hitSQL, identifier, since, now, int64(limit)).Scan(&count, &oldest, &inserted); err != nil {
		return false, 0, time.Time{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	allowed := inserted == 1
	total := int(count + inserted)
	var first time.Time
	switch {
	case oldest != nil:
		first = *oldest
	case allowed:
		first = now
	}
	return allowed, total, first, nil
}

func (r *RateLimitRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rate_limit_hit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
