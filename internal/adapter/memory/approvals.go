package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"resume-copilot/internal/domain"
)

type ApprovalRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.Approval
	// seq keeps insertion order for listings with equal timestamps.
	seq   map[uuid.UUID]int
	count int
}

func NewApprovalRepo() *ApprovalRepo {
	return &ApprovalRepo{rows: make(map[uuid.UUID]*domain.Approval), seq: make(map[uuid.UUID]int)}
}

func (r *ApprovalRepo) Insert(ctx context.Context, a *domain.Approval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[a.ID]; ok {
		return domain.ErrConflict
	}
	r.rows[a.ID] = cloneApproval(a)
	r.seq[a.ID] = r.count
	r.count++
	return nil
}

func (r *ApprovalRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Approval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneApproval(a), nil
}

func (r *ApprovalRepo) Decide(ctx context.Context, id, ownerID uuid.UUID, status domain.ApprovalStatus, feedback *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.OwnerID != ownerID || a.Status != domain.ApprovalPending {
		return false, nil
	}
	a.Status = status
	a.Feedback = feedback
	decided := at
	a.DecidedAt = &decided
	return true, nil
}

func (r *ApprovalRepo) List(ctx context.Context, f domain.ApprovalFilter) ([]*domain.Approval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Approval
	for _, a := range r.rows {
		if a.SessionID != f.SessionID || a.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, cloneApproval(a))
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	return out, nil
}

func cloneApproval(a *domain.Approval) *domain.Approval {
	c := *a
	c.ProposedContent = append(json.RawMessage(nil), a.ProposedContent...)
	if a.DocumentID != nil {
		id := *a.DocumentID
		c.DocumentID = &id
	}
	if a.TaskID != nil {
		id := *a.TaskID
		c.TaskID = &id
	}
	if a.Feedback != nil {
		fb := *a.Feedback
		c.Feedback = &fb
	}
	if a.DecidedAt != nil {
		at := *a.DecidedAt
		c.DecidedAt = &at
	}
	return &c
}
