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

const approvalColumns = "id, session_id, owner_id, document_id, task_id, change_kind, original_content, proposed_content, status, feedback, created_at, decided_at"

type ApprovalRepo struct {
	pool *pgxpool.Pool
}

func NewApprovalRepo(pool *pgxpool.Pool) *ApprovalRepo {
	return &ApprovalRepo{pool: pool}
}

func (r *ApprovalRepo) Insert(ctx context.Context, a *domain.Approval) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO approval (id, session_id, owner_id, document_id, task_id, change_kind, original_content, proposed_content, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.SessionID, a.OwnerID, nullUUID(a.DocumentID), nullUUID(a.TaskID), a.ChangeKind, a.OriginalContent,
		[]byte(a.ProposedContent), string(a.Status), a.CreatedAt)
	return err
}

func (r *ApprovalRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Approval, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval WHERE id = $1`, id)
	a, err := scanApproval(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// Decide is a conditional update: only a pending row owned by ownerID
// changes, so concurrent deciders have exactly one winner.
func (r *ApprovalRepo) Decide(ctx context.Context, id, ownerID uuid.UUID, status domain.ApprovalStatus, feedback *string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE approval SET status = $3, feedback = $4, decided_at = $5
		WHERE id = $1 AND owner_id = $2 AND status = 'pending'`,
		id, ownerID, string(status), nullString(feedback), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ApprovalRepo) List(ctx context.Context, f domain.ApprovalFilter) ([]*domain.Approval, error) {
	sql, args, err := listApprovalsQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func listApprovalsQuery(f domain.ApprovalFilter) (string, []interface{}, error) {
	q := psql.Select(approvalColumns).From("approval").
		Where(sq.Eq{"session_id": f.SessionID.String(), "owner_id": f.OwnerID.String()}).
		OrderBy("created_at", "id")
	if f.Status != nil {
		q = q.Where(sq.Eq{"status": string(*f.Status)})
	}
	return q.ToSql()
}

func scanApproval(row rowScanner) (*domain.Approval, error) {
	var (
		a        domain.Approval
		docID    *string
		taskID   *string
		proposed []byte
		status   string
		feedback *string
		decided  *time.Time
	)
	if err := row.Scan(&a.ID, &a.SessionID, &a.OwnerID, &docID, &taskID, &a.ChangeKind, &a.OriginalContent,
		&proposed, &status, &feedback, &a.CreatedAt, &decided); err != nil {
		return nil, err
	}
	if docID != nil {
		id, err := uuid.Parse(*docID)
		if err != nil {
			return nil, fmt.Errorf("decode document id: %w", err)
		}
		a.DocumentID = &id
	}
	if taskID != nil {
		id, err := uuid.Parse(*taskID)
		if err != nil {
			return nil, fmt.Errorf("decode task id: %w", err)
		}
		a.TaskID = &id
	}
	a.ProposedContent = json.RawMessage(proposed)
	a.Status = domain.ApprovalStatus(status)
	a.Feedback = feedback
	a.DecidedAt = decided
	return &a, nil
}
