package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"resume-copilot/internal/adapter/memory"
	"resume-copilot/internal/domain"
)

func newTestService(h *harness, limit int) *Service {
	return NewService(ServiceDeps{
		Executor:  h.executor,
		Ledger:    h.ledger,
		Approvals: h.gate,
		Artifacts: h.artifact,
		Limiter:   NewLimiter(memory.NewRateLimitRepo(), nil),
	}, ServiceConfig{
		PipelineLimit:   limit,
		PipelineWindow:  time.Hour,
		PollMaxAttempts: 3,
		PollInterval:    time.Millisecond,
	})
}

func TestServiceRateLimitsPipelines(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	svc := newTestService(h, 2)
	owner := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := svc.StartPipeline(ctx, analysisInputs(owner, uuid.New())); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	_, err := svc.StartPipeline(ctx, analysisInputs(owner, uuid.New()))
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.Decision.ResetAt.IsZero() {
		t.Fatalf("expected RateLimitError with reset time, got %#v", err)
	}

	if _, err := svc.StartPipeline(ctx, analysisInputs(uuid.New(), uuid.New())); err != nil {
		t.Fatalf("other owner should have its own budget: %v", err)
	}
}

func TestServiceInvalidInputDoesNotSpendBudget(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newHarness(), 1)
	owner := uuid.New()
	bad := analysisInputs(owner, uuid.New())
	bad.SourceText = ""
	if _, err := svc.StartPipeline(ctx, bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.StartPipeline(ctx, analysisInputs(owner, uuid.New())); err != nil {
		t.Fatalf("valid run after rejected input: %v", err)
	}
}

func TestServiceGetTaskWait(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	svc := newTestService(h, 10)
	owner := uuid.New()

	id, _ := h.ledger.Create(ctx, domain.TaskAnalysis, owner, uuid.New(), nil)
	task, err := svc.GetTask(ctx, id, owner, 100)
	if err != nil {
		t.Fatalf("poll timeout should not be an error: %v", err)
	}
	if task.Status != domain.TaskProcessing {
		t.Fatalf("status = %s", task.Status)
	}

	if _, err := svc.GetTask(ctx, id, uuid.New(), 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign owner: %v", err)
	}
}
