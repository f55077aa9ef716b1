package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Maintenance periodically reclaims space: expired cache rows and rate limit
// hits older than the largest window. Neither is needed for correctness.
type Maintenance struct {
	cache     *Cache
	limiter   *Limiter
	maxWindow time.Duration
	logger    *zap.Logger
}

func NewMaintenance(cache *Cache, limiter *Limiter, maxWindow time.Duration, logger *zap.Logger) *Maintenance {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintenance{cache: cache, limiter: limiter, maxWindow: maxWindow, logger: logger}
}

// Run sweeps every interval until ctx is done.
func (m *Maintenance) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Once(ctx)
		}
	}
}

func (m *Maintenance) Once(ctx context.Context) {
	if m.cache != nil {
		n, err := m.cache.Sweep(ctx)
		if err != nil {
			m.logger.Warn("cache sweep failed", zap.Error(err))
		} else if n > 0 {
			m.logger.Info("cache sweep", zap.Int64("deleted", n))
		}
	}
	if m.limiter != nil && m.maxWindow > 0 {
		n, err := m.limiter.Cleanup(ctx, m.maxWindow)
		if err != nil {
			m.logger.Warn("rate limit cleanup failed", zap.Error(err))
		} else if n > 0 {
			m.logger.Info("rate limit cleanup", zap.Int64("deleted", n))
		}
	}
}
