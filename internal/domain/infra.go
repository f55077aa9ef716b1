package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CacheEntry is one row of the cache table. Key is already scoped.
type CacheEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Expired reports whether the entry has an expiry at or before now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

type RateLimitHit struct {
	Identifier string    `json:"identifier"`
	CreatedAt  time.Time `json:"created_at"`
}

// ParsedDocument is the text a document collaborator extracted from an upload.
type ParsedDocument struct {
	ID        uuid.UUID              `json:"id"`
	OwnerID   uuid.UUID              `json:"owner_id"`
	Text      string                 `json:"text"`
	PageCount int                    `json:"page_count"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
