package repository

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"resume-copilot/internal/domain"
	"resume-copilot/internal/infrastructure/migration"
	"resume-copilot/pkg/infrastructure"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := infrastructure.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := migration.RunMigrations(ctx, pool, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestTaskRepoIntegration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewTaskRepo(pool)

	task := &domain.Task{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		OwnerID:   uuid.New(),
		Kind:      domain.TaskAnalysis,
		Status:    domain.TaskProcessing,
		Metadata:  map[string]interface{}{"source_text": "cv"},
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := repo.Finish(ctx, task.ID, domain.TaskCompleted, json.RawMessage(`{"kind":"analysis"}`), nil, time.Now())
	if err != nil || !ok {
		t.Fatalf("Finish: ok=%v err=%v", ok, err)
	}
	msg := "late"
	if ok, _ := repo.Finish(ctx, task.ID, domain.TaskFailed, nil, &msg, time.Now()); ok {
		t.Fatal("terminal task must not change")
	}

	got, err := repo.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.ErrorMessage != nil || got.CompletedAt == nil {
		t.Fatalf("unexpected task: %+v", got)
	}
	if got.Metadata["source_text"] != "cv" {
		t.Fatalf("metadata lost: %v", got.Metadata)
	}

	list, err := repo.ListBySession(ctx, task.SessionID, task.OwnerID, nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListBySession: len=%d err=%v", len(list), err)
	}
	if _, err := repo.Get(ctx, uuid.New()); err != domain.ErrNotFound {
		t.Fatalf("missing task: %v", err)
	}
}

func TestApprovalRepoIntegration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewApprovalRepo(pool)
	owner, session, producer := uuid.New(), uuid.New(), uuid.New()

	a := &domain.Approval{
		ID:              uuid.New(),
		SessionID:       session,
		OwnerID:         owner,
		TaskID:          &producer,
		ChangeKind:      "summary",
		ProposedContent: json.RawMessage(`{"proposed":"x"}`),
		Status:          domain.ApprovalPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Decide(ctx, a.ID, owner, domain.ApprovalApproved, nil, time.Now())
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	approved := domain.ApprovalApproved
	rows, err := repo.List(ctx, domain.ApprovalFilter{SessionID: session, OwnerID: owner, Status: &approved})
	if err != nil || len(rows) != 1 || rows[0].DecidedAt == nil {
		t.Fatalf("List: rows=%+v err=%v", rows, err)
	}
	if rows[0].DocumentID != nil {
		t.Fatal("document id should be null")
	}
	if rows[0].TaskID == nil || *rows[0].TaskID != producer {
		t.Fatalf("task id = %v, want %s", rows[0].TaskID, producer)
	}
}

func TestRateLimitRepoIntegration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewRateLimitRepo(pool)
	id := "it:" + uuid.NewString()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		ok, count, _, err := repo.Hit(ctx, id, 3, now.Add(-time.Minute), now)
		if err != nil || !ok || count != i+1 {
			t.Fatalf("hit %d: ok=%v count=%d err=%v", i, ok, count, err)
		}
	}
	ok, count, oldest, err := repo.Hit(ctx, id, 3, now.Add(-time.Minute), now)
	if err != nil || ok || count != 3 || oldest.IsZero() {
		t.Fatalf("over limit: ok=%v count=%d oldest=%v err=%v", ok, count, oldest, err)
	}
}

func TestCacheRepoIntegration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewCacheRepo(pool)
	key := "public:it:" + uuid.NewString()

	if e, err := repo.Get(ctx, key); err != nil || e != nil {
		t.Fatalf("miss: e=%v err=%v", e, err)
	}
	past := time.Now().Add(-time.Minute)
	if err := repo.Upsert(ctx, &domain.CacheEntry{Key: key, Value: json.RawMessage(`"v"`), ExpiresAt: &past}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	future := time.Now().Add(time.Hour)
	fresh := "public:it:" + uuid.NewString()
	if err := repo.Upsert(ctx, &domain.CacheEntry{Key: fresh, Value: json.RawMessage(`"v"`), ExpiresAt: &future}); err != nil {
		t.Fatalf("Upsert fresh: %v", err)
	}
	if ok, err := repo.DeleteIfExpired(ctx, fresh, time.Now()); err != nil || ok {
		t.Fatalf("DeleteIfExpired on a live entry: ok=%v err=%v", ok, err)
	}
	if e, err := repo.Get(ctx, fresh); err != nil || e == nil {
		t.Fatalf("live entry removed: e=%v err=%v", e, err)
	}

	n, err := repo.DeleteExpired(ctx, time.Now())
	if err != nil || n < 1 {
		t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
	}
}
