package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimitRepo keeps hit timestamps per identifier. The mutex makes the
// count-then-record step atomic.
type RateLimitRepo struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewRateLimitRepo() *RateLimitRepo {
	return &RateLimitRepo{hits: make(map[string][]time.Time)}
}

func (r *RateLimitRepo) Hit(ctx context.Context, identifier string, limit int, since, now time.Time) (bool, int, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var window []time.Time
	for _, at := range r.hits[identifier] {
		if !at.Before(since) {
			window = append(window, at)
		}
	}
	allowed := len(window) < limit
	if allowed {
		window = append(window, now)
	}
	r.hits[identifier] = window

	var oldest time.Time
	if len(window) > 0 {
		oldest = window[0]
	}
	return allowed, len(window), oldest, nil
}

func (r *RateLimitRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, hits := range r.hits {
		kept := hits[:0]
		for _, at := range hits {
			if at.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, at)
		}
		if len(kept) == 0 {
			delete(r.hits, id)
		} else {
			r.hits[id] = kept
		}
	}
	return n, nil
}
