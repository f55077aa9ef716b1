package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"resume-copilot/internal/domain"
)

func TestTaskFinishOnlyFromProcessing(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepo()
	task := &domain.Task{ID: uuid.New(), Kind: domain.TaskAnalysis, Status: domain.TaskProcessing, CreatedAt: time.Now()}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := repo.Finish(ctx, task.ID, domain.TaskCompleted, json.RawMessage(`{}`), nil, time.Now())
	if err != nil || !ok {
		t.Fatalf("first Finish should apply, ok=%v err=%v", ok, err)
	}
	msg := "late failure"
	ok, err = repo.Finish(ctx, task.ID, domain.TaskFailed, nil, &msg, time.Now())
	if err != nil || ok {
		t.Fatalf("second Finish must be a no-op, ok=%v err=%v", ok, err)
	}

	got, _ := repo.Get(ctx, task.ID)
	if got.Status != domain.TaskCompleted || got.ErrorMessage != nil || got.CompletedAt == nil {
		t.Fatalf("unexpected task after double finish: %+v", got)
	}
}

func TestApprovalDecideGuards(t *testing.T) {
	ctx := context.Background()
	repo := NewApprovalRepo()
	owner := uuid.New()
	a := &domain.Approval{ID: uuid.New(), OwnerID: owner, Status: domain.ApprovalPending, ProposedContent: json.RawMessage(`"x"`)}
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if ok, _ := repo.Decide(ctx, a.ID, uuid.New(), domain.ApprovalApproved, nil, time.Now()); ok {
		t.Fatal("foreign owner must not decide")
	}
	if ok, _ := repo.Decide(ctx, a.ID, owner, domain.ApprovalApproved, nil, time.Now()); !ok {
		t.Fatal("owner should decide a pending row")
	}
	if ok, _ := repo.Decide(ctx, a.ID, owner, domain.ApprovalRejected, nil, time.Now()); ok {
		t.Fatal("decided row must not change again")
	}
	got, _ := repo.Get(ctx, a.ID)
	if got.Status != domain.ApprovalApproved || got.DecidedAt == nil {
		t.Fatalf("unexpected approval: %+v", got)
	}
}

func TestRateLimitHitWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewRateLimitRepo()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		now := base.Add(time.Duration(i) * time.Second)
		if ok, _, _, _ := repo.Hit(ctx, "ip", 2, now.Add(-time.Minute), now); !ok {
			t.Fatalf("hit %d should be allowed", i)
		}
	}
	now := base.Add(3 * time.Second)
	ok, count, oldest, _ := repo.Hit(ctx, "ip", 2, now.Add(-time.Minute), now)
	if ok || count != 2 || !oldest.Equal(base) {
		t.Fatalf("third hit: ok=%v count=%d oldest=%v", ok, count, oldest)
	}

	n, _ := repo.DeleteBefore(ctx, base.Add(500*time.Millisecond))
	if n != 1 {
		t.Fatalf("expected 1 stale hit removed, got %d", n)
	}
}

func TestCacheDeleteIfExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewCacheRepo()
	now := time.Now()
	past, future := now.Add(-time.Second), now.Add(time.Hour)
	_ = repo.Upsert(ctx, &domain.CacheEntry{Key: "old", Value: json.RawMessage(`1`), ExpiresAt: &past})
	_ = repo.Upsert(ctx, &domain.CacheEntry{Key: "live", Value: json.RawMessage(`2`), ExpiresAt: &future})
	_ = repo.Upsert(ctx, &domain.CacheEntry{Key: "forever", Value: json.RawMessage(`3`)})

	for key, want := range map[string]bool{"old": true, "live": false, "forever": false, "missing": false} {
		if ok, err := repo.DeleteIfExpired(ctx, key, now); err != nil || ok != want {
			t.Errorf("DeleteIfExpired(%s) = %v, %v; want %v", key, ok, err, want)
		}
	}
	if e, _ := repo.Get(ctx, "live"); e == nil {
		t.Fatal("live entry removed")
	}
}

func TestApprovalKeepsProducingTask(t *testing.T) {
	ctx := context.Background()
	repo := NewApprovalRepo()
	producer := uuid.New()
	a := &domain.Approval{ID: uuid.New(), TaskID: &producer, Status: domain.ApprovalPending, ProposedContent: json.RawMessage(`"x"`)}
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	*a.TaskID = uuid.New()
	got, err := repo.Get(ctx, a.ID)
	if err != nil || got.TaskID == nil || *got.TaskID != producer {
		t.Fatalf("task id = %v err=%v, want %s", got.TaskID, err, producer)
	}
}
