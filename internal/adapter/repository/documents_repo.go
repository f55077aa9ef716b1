package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"resume-copilot/internal/domain"
)

// DocumentStore reads text that the upload service already extracted. It
// never writes.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) GetParsedText(ctx context.Context, documentID, ownerID uuid.UUID) (*domain.ParsedDocument, error) {
	doc := domain.ParsedDocument{ID: documentID, OwnerID: ownerID}
	var metaB []byte
	err := s.pool.QueryRow(ctx, `SELECT text, page_count, metadata FROM document WHERE id = $1 AND owner_id = $2`,
		documentID, ownerID).Scan(&doc.Text, &doc.PageCount, &metaB)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(metaB) > 0 {
		if err := json.Unmarshal(metaB, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	return &doc, nil
}
