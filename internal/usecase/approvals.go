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

// ApprovalGate stores proposed changes and accepts exactly one decision per
// change.
type ApprovalGate struct {
	repo   ApprovalRepo
	logger *zap.Logger
	now    func() time.Time
}

func NewApprovalGate(repo ApprovalRepo, logger *zap.Logger) *ApprovalGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalGate{repo: repo, logger: logger, now: time.Now}
}

// CreateBatch inserts one pending approval per item. Rows are inserted
// independently: a failed insert is logged and skipped, earlier rows stay.
// The returned ids are those actually stored.
func (g *ApprovalGate) CreateBatch(ctx context.Context, sessionID, ownerID uuid.UUID, items []domain.ApprovalItem) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(items))
	var lastErr error
	for i, item := range items {
		proposed := item.ProposedContent
		if len(proposed) == 0 || !json.Valid(proposed) {
			g.logger.Warn("skipping approval with invalid proposed content",
				zap.String("session_id", sessionID.String()),
				zap.Int("index", i))
			continue
		}
		a := &domain.Approval{
			ID:              uuid.New(),
			SessionID:       sessionID,
			OwnerID:         ownerID,
			DocumentID:      item.DocumentID,
			TaskID:          item.TaskID,
			ChangeKind:      item.ChangeKind,
			OriginalContent: item.OriginalContent,
			ProposedContent: proposed,
			Status:          domain.ApprovalPending,
			CreatedAt:       g.now().UTC(),
		}
		if err := g.repo.Insert(ctx, a); err != nil {
			lastErr = err
			g.logger.Warn("approval insert failed",
				zap.String("session_id", sessionID.String()),
				zap.String("change_kind", item.ChangeKind),
				zap.Error(err))
			continue
		}
		ids = append(ids, a.ID)
	}
	if len(ids) == 0 && lastErr != nil {
		return ids, fmt.Errorf("create approvals: %w", lastErr)
	}
	return ids, nil
}

// Decide applies an approve or reject decision to a pending approval owned by
// ownerID. A missing or foreign approval is domain.ErrNotFound; one that was
// already decided is domain.ErrConflict.
func (g *ApprovalGate) Decide(ctx context.Context, id, ownerID uuid.UUID, decision domain.Decision, feedback *string) (*domain.Approval, error) {
	status, ok := decision.Status()
	if !ok {
		return nil, fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidInput, decision)
	}
	if feedback != nil && *feedback == "" {
		feedback = nil
	}
	applied, err := g.repo.Decide(ctx, id, ownerID, status, feedback, g.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("decide approval: %w", err)
	}

	current, err := g.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("decide approval: %w", err)
	}
	if current.OwnerID != ownerID {
		return nil, fmt.Errorf("decide approval: %w", domain.ErrNotFound)
	}
	if !applied {
		return current, fmt.Errorf("approval %s already %s: %w", id, current.Status, domain.ErrConflict)
	}
	return current, nil
}

func (g *ApprovalGate) ListPending(ctx context.Context, sessionID, ownerID uuid.UUID) ([]*domain.Approval, error) {
	pending := domain.ApprovalPending
	return g.ListBySessionAndStatus(ctx, sessionID, ownerID, &pending)
}

// ListBySessionAndStatus lists the session's approvals, optionally narrowed
// to one status.
func (g *ApprovalGate) ListBySessionAndStatus(ctx context.Context, sessionID, ownerID uuid.UUID, status *domain.ApprovalStatus) ([]*domain.Approval, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown approval status %q", domain.ErrInvalidInput, *status)
	}
	rows, err := g.repo.List(ctx, domain.ApprovalFilter{SessionID: sessionID, OwnerID: ownerID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return rows, nil
}

func (g *ApprovalGate) Summary(ctx context.Context, sessionID, ownerID uuid.UUID) (domain.ApprovalSummary, error) {
	rows, err := g.ListBySessionAndStatus(ctx, sessionID, ownerID, nil)
	if err != nil {
		return domain.ApprovalSummary{}, err
	}
	var s domain.ApprovalSummary
	for _, a := range rows {
		switch a.Status {
		case domain.ApprovalPending:
			s.Pending++
		case domain.ApprovalApproved:
			s.Approved++
		case domain.ApprovalRejected:
			s.Rejected++
		}
	}
	s.Resolved = len(rows) > 0 && s.Pending == 0
	return s, nil
}
