package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"resume-copilot/internal/adapter/memory"
	"resume-copilot/internal/domain"
)

func newTestCache(clock *fakeClock) (*Cache, *memory.CacheRepo) {
	repo := memory.NewCacheRepo()
	c := NewCache(repo, nil)
	c.now = clock.Now
	return c, repo
}

func TestScopedKey(t *testing.T) {
	owner := uuid.MustParse("6f1c2f0e-3a59-4c1b-9a7e-1f0a3c9d2b11")
	if got := ScopedKey("k", owner); got != "user:6f1c2f0e-3a59-4c1b-9a7e-1f0a3c9d2b11:k" {
		t.Errorf("user key = %q", got)
	}
	if got := ScopedKey("k", uuid.Nil); got != "public:k" {
		t.Errorf("public key = %q", got)
	}
}

func TestCacheSetGetScoped(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(newFakeClock())
	alice, bob := uuid.New(), uuid.New()

	if err := c.Set(ctx, "profile", alice, []byte(`{"v":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := c.Get(ctx, "profile", alice)
	if !ok || string(got) != `{"v":1}` {
		t.Fatalf("Get = %s, %v", got, ok)
	}
	if _, ok := c.Get(ctx, "profile", bob); ok {
		t.Fatal("another owner must not see the entry")
	}
	if _, ok := c.Get(ctx, "profile", uuid.Nil); ok {
		t.Fatal("public scope must not see a user entry")
	}

	if err := c.Set(ctx, "profile", alice, []byte(`{"v":2}`), time.Minute); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = c.Get(ctx, "profile", alice)
	if string(got) != `{"v":2}` {
		t.Fatalf("upsert not applied: %s", got)
	}

	if err := c.Delete(ctx, "profile", alice); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get(ctx, "profile", alice); ok {
		t.Fatal("deleted entry still readable")
	}
}

func TestCacheExpiryRemovesEntry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, repo := newTestCache(clock)
	owner := uuid.New()

	_ = c.Set(ctx, "k", owner, []byte(`"v"`), 10*time.Second)
	clock.Advance(9 * time.Second)
	if _, ok := c.Get(ctx, "k", owner); !ok {
		t.Fatal("entry should be live before expiry")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, "k", owner); ok {
		t.Fatal("entry at expires_at must miss")
	}
	if e, _ := repo.Get(ctx, ScopedKey("k", owner)); e != nil {
		t.Fatal("expired entry should be deleted on read")
	}
	if _, ok := c.Get(ctx, "k", owner); ok {
		t.Fatal("second read must also miss")
	}
}

// rewritingCacheRepo stores a fresh value right after handing out an expired
// one, like a concurrent Set landing between the read and the lazy delete.
type rewritingCacheRepo struct {
	*memory.CacheRepo
	fresh *domain.CacheEntry
}

func (r *rewritingCacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	e, err := r.CacheRepo.Get(ctx, key)
	if r.fresh != nil {
		_ = r.CacheRepo.Upsert(ctx, r.fresh)
		r.fresh = nil
	}
	return e, err
}

func TestCacheExpiredReadKeepsConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repo := &rewritingCacheRepo{CacheRepo: memory.NewCacheRepo()}
	c := NewCache(repo, nil)
	c.now = clock.Now
	owner := uuid.New()

	_ = c.Set(ctx, "k", owner, []byte(`"old"`), time.Second)
	clock.Advance(time.Minute)
	later := clock.Now().Add(time.Hour)
	repo.fresh = &domain.CacheEntry{Key: ScopedKey("k", owner), Value: json.RawMessage(`"new"`), ExpiresAt: &later}

	if _, ok := c.Get(ctx, "k", owner); ok {
		t.Fatal("expired read must miss")
	}
	got, ok := c.Get(ctx, "k", owner)
	if !ok || string(got) != `"new"` {
		t.Fatalf("fresh value lost: %s, %v", got, ok)
	}
}

func TestCacheNoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, _ := newTestCache(clock)
	_ = c.Set(ctx, "k", uuid.Nil, []byte(`1`), 0)
	clock.Advance(24 * 365 * time.Hour)
	if _, ok := c.Get(ctx, "k", uuid.Nil); !ok {
		t.Fatal("entry without ttl should not expire")
	}
}

func TestCacheSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, _ := newTestCache(clock)
	owner := uuid.New()
	_ = c.Set(ctx, "short", owner, []byte(`1`), time.Second)
	_ = c.Set(ctx, "long", owner, []byte(`2`), time.Hour)

	clock.Advance(time.Minute)
	n, err := c.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep: n=%d err=%v", n, err)
	}
	if _, ok := c.Get(ctx, "long", owner); !ok {
		t.Fatal("live entry removed by sweep")
	}
}

func TestCacheFailsOpen(t *testing.T) {
	ctx := context.Background()
	c := NewCache(brokenCacheRepo{}, nil)
	if _, ok := c.Get(ctx, "k", uuid.New()); ok {
		t.Fatal("broken store must read as a miss")
	}
	if err := c.Set(ctx, "k", uuid.New(), []byte(`1`), time.Minute); err == nil {
		t.Fatal("Set should report the store error")
	}
}
