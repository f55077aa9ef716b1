package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"resume-copilot/internal/domain"
)

// RateDecision is the outcome of one CheckAndRecord call.
type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before the window frees a
// slot.
func (d RateDecision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter is a counting sliding-window rate limiter. It fails closed: when
// the store errors the request is denied.
type Limiter struct {
	repo   RateLimitRepo
	logger *zap.Logger
	now    func() time.Time
}

func NewLimiter(repo RateLimitRepo, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{repo: repo, logger: logger, now: time.Now}
}

// CheckAndRecord admits a request for identifier if fewer than limit hits
// were recorded within the trailing window, recording it when admitted.
func (l *Limiter) CheckAndRecord(ctx context.Context, identifier string, limit int, window time.Duration) (RateDecision, error) {
	now := l.now().UTC()
	if limit <= 0 || window <= 0 {
		return RateDecision{ResetAt: now}, fmt.Errorf("%w: limit and window must be positive", domain.ErrInvalidInput)
	}
	allowed, count, oldest, err := l.repo.Hit(ctx, identifier, limit, now.Add(-window), now)
	if err != nil {
		l.logger.Warn("rate limit store failed, denying", zap.String("identifier", identifier), zap.Error(err))
		return RateDecision{Allowed: false, Remaining: 0, ResetAt: now.Add(window)}, fmt.Errorf("rate limit check: %w", err)
	}
	d := RateDecision{Allowed: allowed, Remaining: limit - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if oldest.IsZero() {
		d.ResetAt = now.Add(window)
	} else {
		d.ResetAt = oldest.Add(window)
	}
	return d, nil
}

// Cleanup deletes hits older than maxWindow, the largest window in use.
func (l *Limiter) Cleanup(ctx context.Context, maxWindow time.Duration) (int64, error) {
	n, err := l.repo.DeleteBefore(ctx, l.now().UTC().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("rate limit cleanup: %w", err)
	}
	return n, nil
}
