package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/domain"
)

// Cache is a TTL key/value store scoped per owner. Store failures never
// propagate to readers: they are logged and treated as a miss.
type Cache struct {
	repo   CacheRepo
	logger *zap.Logger
	now    func() time.Time
}

func NewCache(repo CacheRepo, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{repo: repo, logger: logger, now: time.Now}
}

// ScopedKey namespaces key by owner; uuid.Nil means the public namespace.
func ScopedKey(key string, ownerID uuid.UUID) string {
	if ownerID == uuid.Nil {
		return "public:" + key
	}
	return "user:" + ownerID.String() + ":" + key
}

func (c *Cache) Get(ctx context.Context, key string, ownerID uuid.UUID) ([]byte, bool) {
	scoped := ScopedKey(key, ownerID)
	e, err := c.repo.Get(ctx, scoped)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", scoped), zap.Error(err))
		return nil, false
	}
	if e == nil {
		return nil, false
	}
	if now := c.now(); e.Expired(now) {
		if _, err := c.repo.DeleteIfExpired(ctx, scoped, now); err != nil {
			c.logger.Warn("cache expired delete failed", zap.String("key", scoped), zap.Error(err))
		}
		return nil, false
	}
	return e.Value, true
}

// Set stores value (a JSON document) under key. A non-positive ttl stores the
// entry without expiry.
func (c *Cache) Set(ctx context.Context, key string, ownerID uuid.UUID, value []byte, ttl time.Duration) error {
	e := &domain.CacheEntry{Key: ScopedKey(key, ownerID), Value: json.RawMessage(value)}
	if ttl > 0 {
		exp := c.now().Add(ttl).UTC()
		e.ExpiresAt = &exp
	}
	if err := c.repo.Upsert(ctx, e); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", e.Key), zap.Error(err))
		return err
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string, ownerID uuid.UUID) error {
	scoped := ScopedKey(key, ownerID)
	if err := c.repo.Delete(ctx, scoped); err != nil {
		c.logger.Warn("cache delete failed", zap.String("key", scoped), zap.Error(err))
		return err
	}
	return nil
}

// Sweep removes every expired entry.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	return c.repo.DeleteExpired(ctx, c.now().UTC())
}
