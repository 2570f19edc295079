package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/mnemex/internal/apperr"
	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/pkg/types"
)

// ArchivalService moves memories between the hot and archive tables (§4.7).
// A pinned memory is never archived regardless of decay or age; callers
// must unpin first.
type ArchivalService struct {
	store    storage.MemoryStore
	events   *EventLogger
	retention time.Duration
}

// NewArchivalService wires the store and event logger; retention is how
// long an archived memory survives before it becomes eligible for cleanup.
func NewArchivalService(store storage.MemoryStore, events *EventLogger, retention time.Duration) *ArchivalService {
	return &ArchivalService{store: store, events: events, retention: retention}
}

// Archive moves one memory into archived_memories, logs the transition,
// and best-effort removes its vector entry — a failed vector delete is
// logged but does not fail the archive, matching the teacher's own
// non-fatal-vector-failure pattern in the networked search provider.
func (a *ArchivalService) Archive(ctx context.Context, id, workspaceID string, triggeredBy types.TriggeredBy, userID, reason string) error {
	m, err := a.store.GetMemory(ctx, id, workspaceID)
	if err != nil {
		return err
	}
	if m.Pinned {
		return apperr.New(apperr.KindConflict, "ArchivalService.Archive", "pinned memories cannot be archived")
	}
	if !IsValidTransition(m.LifecycleState, types.StateArchived, triggeredBy) {
		return apperr.New(apperr.KindConflict, "ArchivalService.Archive", fmt.Sprintf("invalid transition %s -> archived", m.LifecycleState))
	}

	stats, err := a.store.ArchiveMemory(ctx, id, workspaceID, a.retention)
	if err != nil {
		return err
	}
	if stats.VectorDeleteErr != nil {
		log.Printf("engine: archive %s: vector delete failed (continuing): %v", id, stats.VectorDeleteErr)
	}

	return a.events.LogTransition(ctx, id, workspaceID, m.LifecycleState, types.StateArchived, reason, triggeredBy, userID, nil)
}

// ArchiveBatch archives every id it can, collecting rather than aborting
// on the first per-item failure — the tiered-retention idiom the teacher's
// backup package uses for its own bulk deletion sweeps.
func (a *ArchivalService) ArchiveBatch(ctx context.Context, ids []string, workspaceID string, triggeredBy types.TriggeredBy, userID, reason string) (archived int, errs []error) {
	for _, id := range ids {
		if err := a.Archive(ctx, id, workspaceID, triggeredBy, userID, reason); err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", id, err))
			continue
		}
		archived++
	}
	return archived, errs
}

// Restore moves a memory back from archived_memories to memories, logging
// the transition as active.
func (a *ArchivalService) Restore(ctx context.Context, id, workspaceID string, triggeredBy types.TriggeredBy, userID, reason string) (*types.Memory, error) {
	m, err := a.store.RestoreMemory(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := a.events.LogTransition(ctx, id, workspaceID, types.StateArchived, types.StateActive, reason, triggeredBy, userID, nil); err != nil {
		return nil, err
	}
	return m, nil
}
