// Package memory holds in-process implementations of the repository ports,
// used when no database is configured and by unit tests.
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

type TaskRepo struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
}

func NewTaskRepo() *TaskRepo {
	return &TaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; ok {
		return domain.ErrConflict
	}
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *TaskRepo) Finish(ctx context.Context, id uuid.UUID, status domain.TaskStatus, result json.RawMessage, errMsg *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != domain.TaskProcessing {
		return false, nil
	}
	t.Status = status
	t.Result = append(json.RawMessage(nil), result...)
	t.ErrorMessage = errMsg
	completed := at
	t.CompletedAt = &completed
	return true, nil
}

func (r *TaskRepo) ListBySession(ctx context.Context, sessionID, ownerID uuid.UUID, kind *domain.TaskKind) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.SessionID != sessionID || t.OwnerID != ownerID {
			continue
		}
		if kind != nil && t.Kind != *kind {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.Result != nil {
		c.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.ErrorMessage != nil {
		msg := *t.ErrorMessage
		c.ErrorMessage = &msg
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
