package postgres

import (
	"github.com/scrypster/mnemex/internal/storage/relational"
	"github.com/scrypster/mnemex/internal/vectorindex"
)

// NewMemoryStore wires a networked Adapter to a vector index via the
// shared relational.MemoryStore. Pass a pgvectorindex.Index when
// Adapter.PgvectorAvailable is true; otherwise pass nil and rely on the
// caller's own brute-force fallback, or omit vector search entirely.
func NewMemoryStore(adapter *Adapter, index vectorindex.Index) *relational.MemoryStore {
	return relational.New(adapter, index)
}
