// Package vectorindex defines the Vector Index Adapter (§4.2): a small
// interface for upserting, searching, and deleting vectors, keyed by
// memory id and filtered by workspace and type metadata. Two
// implementations exist: internal/vectorindex/pgvectorindex (PostgreSQL +
// pgvector) and internal/vectorindex/sqlitevec (SQLite + sqlite-vec, with
// a brute-force fallback when the extension fails to load).
package vectorindex

import (
	"context"

	"github.com/scrypster/mnemex/internal/apperr"
)

// Metadata accompanies every vector; workspace_id and type are the only
// fields the spec requires filters to support.
type Metadata struct {
	WorkspaceID string
	Type        string
}

// Filter restricts Search to vectors matching workspace_id equality and,
// when Types is non-empty, set membership on type.
type Filter struct {
	WorkspaceID string
	Types       []string
}

// Hit is one search result: the memory id and its similarity score, higher
// is more similar.
type Hit struct {
	ID    string
	Score float64
}

// Index is the Vector Index Adapter. Dimensionality is fixed at index
// creation; both implementations reject, in Upsert and Search, a vector
// whose length differs from Dimension().
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32, meta Metadata) error
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error)
	Delete(ctx context.Context, id string) error
	Dimension() int
}

// Wrap classifies any adapter-specific failure as apperr.KindVectorStore,
// matching §7's error taxonomy for this component.
func Wrap(op string, err error) error {
	return apperr.Wrap(apperr.KindVectorStore, op, err)
}
