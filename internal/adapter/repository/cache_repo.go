package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"resume-copilot/internal/domain"
)

type CacheRepo struct {
	pool *pgxpool.Pool
}

func NewCacheRepo(pool *pgxpool.Pool) *CacheRepo {
	return &CacheRepo{pool: pool}
}

func (r *CacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	e := domain.CacheEntry{Key: key}
	var value []byte
	err := r.pool.QueryRow(ctx, `SELECT value, expires_at FROM cache WHERE key = $1`, key).Scan(&value, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Value = value
	return &e, nil
}

func (r *CacheRepo) Upsert(ctx context.Context, e *domain.CacheEntry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO cache (key, value, expires_at, updated_at)
		VALUES ($1,$2,$3, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		e.Key, []byte(e.Value), nullTime(e.ExpiresAt))
	return err
}

func (r *CacheRepo) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cache WHERE key = $1`, key)
	return err
}

func (r *CacheRepo) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cache WHERE key = $1 AND expires_at IS NOT NULL AND expires_at <= $2`, key, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CacheRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
