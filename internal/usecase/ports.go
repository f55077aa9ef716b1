package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"resume-copilot/internal/domain"
)

// Completer is the external structured-generation service: untyped text in,
// untyped text out. All parsing of the response happens in this package.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// DocumentStore returns text already extracted from an uploaded document.
type DocumentStore interface {
	GetParsedText(ctx context.Context, documentID, ownerID uuid.UUID) (*domain.ParsedDocument, error)
}

type Renderer interface {
	RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error)
}

type TaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	// Finish applies a terminal status only if the row is still processing.
	// It reports whether the row was updated.
	Finish(ctx context.Context, id uuid.UUID, status domain.TaskStatus, result json.RawMessage, errMsg *string, at time.Time) (bool, error)
	ListBySession(ctx context.Context, sessionID, ownerID uuid.UUID, kind *domain.TaskKind) ([]*domain.Task, error)
}

type ApprovalRepo interface {
	Insert(ctx context.Context, a *domain.Approval) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Approval, error)
	// Decide applies a terminal status only if the row is pending and owned by
	// ownerID. It reports whether the row was updated.
	Decide(ctx context.Context, id, ownerID uuid.UUID, status domain.ApprovalStatus, feedback *string, at time.Time) (bool, error)
	List(ctx context.Context, f domain.ApprovalFilter) ([]*domain.Approval, error)
}

type CacheRepo interface {
	// Get returns nil, nil when the key is absent.
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)
	Upsert(ctx context.Context, e *domain.CacheEntry) error
	Delete(ctx context.Context, key string) error
	// DeleteIfExpired removes key only while its stored entry is expired at
	// now, so a value rewritten after the read survives.
	DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RateLimitRepo records hits for the sliding-window limiter.
type RateLimitRepo interface {
	// Hit counts hits for identifier at or after since and, in the same
	// logical step, records a hit at now only if that count is below limit.
	// It returns whether the hit was recorded, the in-window count after the
	// operation and the oldest in-window hit (zero if none).
	Hit(ctx context.Context, identifier string, limit int, since, now time.Time) (bool, int, time.Time, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Markup turns artifact markdown into a standalone HTML page.
type Markup interface {
	ToHTML(title, markdown string) (string, error)
}
