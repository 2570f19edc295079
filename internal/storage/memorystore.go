package storage

import (
	"context"
	"time"

	"github.com/scrypster/mnemex/pkg/types"
)

// ListOptions provides pagination for lifecycle-state page scans (§4.9
// evaluateBatch, §4.10 getMemoriesByLifecycleState).
type ListOptions struct {
	Offset int
	Limit  int
}

// Normalize applies the spec's default/cap pagination rules (§5 backpressure:
// batch sizes are bounded, default 1000, CLI capped at [1,1000]).
func (o *ListOptions) Normalize() {
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Limit <= 0 {
		o.Limit = 1000
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
}

// PaginatedResult is a generic page of results with a total count.
type PaginatedResult[T any] struct {
	Items    []T
	Total    int
	Offset   int
	Limit    int
	HasMore  bool
}

// SearchParams configures MemoryStore.SearchMemories (§4.10).
type SearchParams struct {
	Vector           []float32
	Limit            int
	Types            []string
	IncludeArchived  bool
}

// SearchHit pairs a hydrated memory with its vector similarity score.
type SearchHit struct {
	Memory     types.Memory
	Similarity float64
}

// MemoryStore is the public façade over the relational Adapter and the
// Vector Index Adapter (§4.10). It validates workspace scoping on every
// call and initializes lifecycle fields on create.
type MemoryStore interface {
	CreateMemory(ctx context.Context, m *types.Memory, embedding []float32) error
	GetMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error)
	SearchMemories(ctx context.Context, workspaceID string, params SearchParams) ([]SearchHit, error)
	UpdateMemory(ctx context.Context, m *types.Memory) error
	UpdateMemoryLifecycle(ctx context.Context, id, workspaceID string, patch LifecyclePatch) error
	GetMemoriesByLifecycleState(ctx context.Context, workspaceID string, state types.LifecycleState, page ListOptions) (*PaginatedResult[types.Memory], error)
	RecordAccess(ctx context.Context, id, workspaceID string) error

	// Relationships
	CreateRelationship(ctx context.Context, rel *types.Relationship) error
	GetRelationships(ctx context.Context, memoryID string) ([]types.Relationship, error)

	// Archive / restore / cleanup backing operations used by the lifecycle
	// engine (§4.7, §4.8); these operate directly on the hot and archive
	// tables within a transaction.
	ArchiveMemory(ctx context.Context, id, workspaceID string, retention time.Duration) (*ArchiveStats, error)
	RestoreMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error)
	ListExpiredArchived(ctx context.Context, workspaceID string, now time.Time, batchSize int) ([]types.ArchivedMemory, error)
	DeleteArchivedMemory(ctx context.Context, id, workspaceID string) (relationshipsDeleted int, err error)

	// Events
	LogLifecycleEvent(ctx context.Context, ev *types.LifecycleEvent) error
	GetHistory(ctx context.Context, memoryID, workspaceID string) ([]types.LifecycleEvent, error)
	GetRecentTransitions(ctx context.Context, workspaceID string, limit int) ([]types.LifecycleEvent, error)
	PruneLifecycleEvents(ctx context.Context, workspaceID string, olderThan time.Time) (int, error)

	Close() error
}

// LifecyclePatch carries a partial lifecycle field update (§4.9
// updateMemoryLifecycle). Nil pointers mean "leave unchanged".
type LifecyclePatch struct {
	LifecycleState  *types.LifecycleState
	DecayScore      *float64
	ImportanceScore *float64
	LastAccessedAt  *time.Time
	AccessCount     *int
	Pinned          *bool
	PinnedBy        *string
	PinnedAt        *time.Time
	ArchivedAt      *time.Time
	ExpiresAt       *time.Time
	EffectiveTTL    *int64
}

// ArchiveStats is returned by ArchiveMemory (§4.7 step 3).
type ArchiveStats struct {
	RelationshipsTouched int
	VectorDeleteErr      error
}
