package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"resume-copilot/internal/domain"
)

type CacheRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry
}

func NewCacheRepo() *CacheRepo {
	return &CacheRepo{entries: make(map[string]*domain.CacheEntry)}
}

// Get returns nil, nil on a miss, like the SQL repository.
func (r *CacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	return cloneEntry(e), nil
}

func (r *CacheRepo) Upsert(ctx context.Context, e *domain.CacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Key] = cloneEntry(e)
	return nil
}

func (r *CacheRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

func (r *CacheRepo) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok || !e.Expired(now) {
		return false, nil
	}
	delete(r.entries, key)
	return true, nil
}

func (r *CacheRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, e := range r.entries {
		if e.Expired(now) {
			delete(r.entries, k)
			n++
		}
	}
	return n, nil
}

func cloneEntry(e *domain.CacheEntry) *domain.CacheEntry {
	c := *e
	c.Value = append(json.RawMessage(nil), e.Value...)
	if e.ExpiresAt != nil {
		at := *e.ExpiresAt
		c.ExpiresAt = &at
	}
	return &c
}
