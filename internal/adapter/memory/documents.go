package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"resume-copilot/internal/domain"
)

// DocumentStore serves parsed documents registered with Put.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*domain.ParsedDocument
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[uuid.UUID]*domain.ParsedDocument)}
}

func (s *DocumentStore) Put(doc *domain.ParsedDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *doc
	s.docs[doc.ID] = &c
}

func (s *DocumentStore) GetParsedText(ctx context.Context, documentID, ownerID uuid.UUID) (*domain.ParsedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok || doc.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	c := *doc
	return &c, nil
}
