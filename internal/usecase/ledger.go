package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/domain"
)

// Ledger records pipeline executions as Task rows. A task is created in the
// processing status and moves exactly once to completed or failed.
type Ledger struct {
	repo   TaskRepo
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(repo TaskRepo, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{repo: repo, logger: logger, now: time.Now}
}

func (l *Ledger) Create(ctx context.Context, kind domain.TaskKind, ownerID, sessionID uuid.UUID, metadata map[string]interface{}) (uuid.UUID, error) {
	if !kind.Valid() {
		return uuid.Nil, fmt.Errorf("%w: unknown task kind %q", domain.ErrInvalidInput, kind)
	}
	t := &domain.Task{
		ID:        uuid.New(),
		SessionID: sessionID,
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    domain.TaskProcessing,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, t); err != nil {
		return uuid.Nil, fmt.Errorf("create task: %w", err)
	}
	return t.ID, nil
}

func (l *Ledger) Complete(ctx context.Context, id uuid.UUID, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode task result: %w", err)
	}
	return l.finish(ctx, id, domain.TaskCompleted, raw, nil)
}

func (l *Ledger) Fail(ctx context.Context, id uuid.UUID, message string) error {
	return l.finish(ctx, id, domain.TaskFailed, nil, &message)
}

func (l *Ledger) finish(ctx context.Context, id uuid.UUID, status domain.TaskStatus, result json.RawMessage, errMsg *string) error {
	ok, err := l.repo.Finish(ctx, id, status, result, errMsg, l.now().UTC())
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	if ok {
		return nil
	}
	if _, err := l.repo.Get(ctx, id); err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	l.logger.Warn("task already terminal, transition ignored",
		zap.String("task_id", id.String()),
		zap.String("status", string(status)))
	return fmt.Errorf("finish task %s: %w", id, domain.ErrConflict)
}

// Get returns the task if it belongs to ownerID. Foreign tasks are reported
// as not found.
func (l *Ledger) Get(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error) {
	t, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t.OwnerID != ownerID {
		return nil, fmt.Errorf("get task: %w", domain.ErrNotFound)
	}
	return t, nil
}

// PollUntilTerminal re-reads the task until it is terminal or maxAttempts
// reads were made. On exhaustion it returns the last task seen together with
// domain.ErrPollTimeout.
func (l *Ledger) PollUntilTerminal(ctx context.Context, id, ownerID uuid.UUID, maxAttempts int, interval time.Duration) (*domain.Task, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var last *domain.Task
	for attempt := 1; ; attempt++ {
		t, err := l.Get(ctx, id, ownerID)
		if err != nil {
			return nil, err
		}
		last = t
		if t.Status.Terminal() || attempt >= maxAttempts {
			break
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}
	if !last.Status.Terminal() {
		return last, fmt.Errorf("poll task %s after %d attempts: %w", id, maxAttempts, domain.ErrPollTimeout)
	}
	return last, nil
}

func (l *Ledger) ListSession(ctx context.Context, sessionID, ownerID uuid.UUID, kind *domain.TaskKind) ([]*domain.Task, error) {
	if kind != nil && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown task kind %q", domain.ErrInvalidInput, *kind)
	}
	tasks, err := l.repo.ListBySession(ctx, sessionID, ownerID, kind)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
