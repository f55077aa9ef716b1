package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"resume-copilot/internal/domain"
)

const taskColumns = "id, session_id, owner_id, kind, status, metadata, result, error_message, created_at, completed_at"

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	meta := t.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metaB, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode task metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO task (id, session_id, owner_id, kind, status, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.SessionID, t.OwnerID, string(t.Kind), string(t.Status), metaB, t.CreatedAt)
	return err
}

func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM task WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// Finish is a conditional update: only a processing row changes.
func (r *TaskRepo) Finish(ctx context.Context, id uuid.UUID, status domain.TaskStatus, result json.RawMessage, errMsg *string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE task SET status = $2, result = $3, error_message = $4, completed_at = $5
		WHERE id = $1 AND status = 'processing'`,
		id, string(status), nullJSON(result), nullString(errMsg), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TaskRepo) ListBySession(ctx context.Context, sessionID, ownerID uuid.UUID, kind *domain.TaskKind) ([]*domain.Task, error) {
	sql, args, err := listTasksQuery(sessionID, ownerID, kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func listTasksQuery(sessionID, ownerID uuid.UUID, kind *domain.TaskKind) (string, []interface{}, error) {
	q := psql.Select(taskColumns).From("task").
		Where(sq.Eq{"session_id": sessionID.String(), "owner_id": ownerID.String()}).
		OrderBy("created_at DESC", "id")
	if kind != nil {
		q = q.Where(sq.Eq{"kind": string(*kind)})
	}
	return q.ToSql()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t         domain.Task
		kind      string
		status    string
		metaB     []byte
		resultB   []byte
		errMsg    *string
		completed *time.Time
	)
	if err := row.Scan(&t.ID, &t.SessionID, &t.OwnerID, &kind, &status, &metaB, &resultB, &errMsg, &t.CreatedAt, &completed); err != nil {
		return nil, err
	}
	t.Kind = domain.TaskKind(kind)
	t.Status = domain.TaskStatus(status)
	if len(metaB) > 0 {
		if err := json.Unmarshal(metaB, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode task metadata: %w", err)
		}
	}
	if len(resultB) > 0 {
		t.Result = json.RawMessage(resultB)
	}
	t.ErrorMessage = errMsg
	t.CompletedAt = completed
	return &t, nil
}
