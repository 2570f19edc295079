package sqlite

import (
	"github.com/scrypster/mnemex/internal/storage/relational"
	"github.com/scrypster/mnemex/internal/vectorindex"
)

// NewMemoryStore wires an embedded Adapter to a vector index via the
// shared relational.MemoryStore. index may be nil when a deployment runs
// without embeddings.
func NewMemoryStore(adapter *Adapter, index vectorindex.Index) *relational.MemoryStore {
	return relational.New(adapter, index)
}
