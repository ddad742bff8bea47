// Package models defines the data model for the embedding retrieval store.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Content types partition the store into one collection each.
const (
	ContentTypeDDL           = "ddl"
	ContentTypeSQL           = "sql"
	ContentTypeDocumentation = "documentation"
)

// ValidContentType reports whether t is a recognized content type.
func ValidContentType(t string) bool {
	switch t {
	case ContentTypeDDL, ContentTypeSQL, ContentTypeDocumentation:
		return true
	}
	return false
}

// Metadata keys with isolation or scoping semantics. Anything else stored
// in a record's metadata map is carried through untouched.
const (
	MetaContentType  = "content_type"
	MetaDatabaseType = "database_type"
	MetaTenantID     = "tenant_id"
	MetaIsShared     = "is_shared"
	MetaCreatedAt    = "created_at"
	MetaQuestion     = "question"
)

// Collection is a named partition of the store, one per content type.
// Collections are created lazily on first write and never deleted.
type Collection struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// EmbeddingRecord is the atomic stored unit: a document, its embedding
// vector, and an open-ended metadata map.
type EmbeddingRecord struct {
	ID           string
	CollectionID uuid.UUID
	Document     string
	Vector       []float32
	Metadata     map[string]any
	// Seq is the monotonic insertion sequence assigned by the store. It
	// breaks ties between equal similarity scores deterministically.
	Seq       int64
	CreatedAt time.Time
}

// TenantID returns the record's owning tenant, or "" when absent.
func (r *EmbeddingRecord) TenantID() string {
	if v, ok := r.Metadata[MetaTenantID].(string); ok {
		return v
	}
	return ""
}

// IsShared reports whether the record is marked visible to every tenant.
// The source stored the flag both as a bool and as the string "true"
// depending on the writer, so both are honored.
func (r *EmbeddingRecord) IsShared() bool {
	switch v := r.Metadata[MetaIsShared].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// SearchResult pairs a record with its similarity score. Score is cosine
// similarity in [-1, 1], higher is closer.
type SearchResult struct {
	Record EmbeddingRecord
	Score  float64
}
