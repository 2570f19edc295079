package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/pkg/types"
)

// EventLogger records and queries lifecycle transitions (§4.6), an
// append-only audit trail over storage.MemoryStore's event methods.
type EventLogger struct {
	store storage.MemoryStore
}

func NewEventLogger(store storage.MemoryStore) *EventLogger {
	return &EventLogger{store: store}
}

// LogTransition appends one lifecycle_events row. previousState may be
// empty for a memory's first recorded event.
func (l *EventLogger) LogTransition(ctx context.Context, memoryID, workspaceID string, previousState, newState types.LifecycleState, reason string, triggeredBy types.TriggeredBy, userID string, metadata map[string]interface{}) error {
	ev := &types.LifecycleEvent{
		ID:            uuid.NewString(),
		MemoryID:      memoryID,
		WorkspaceID:   workspaceID,
		PreviousState: previousState,
		NewState:      newState,
		Reason:        reason,
		TriggeredBy:   triggeredBy,
		UserID:        userID,
		Metadata:      metadata,
		CreatedAt:     time.Now(),
	}
	return l.store.LogLifecycleEvent(ctx, ev)
}

func (l *EventLogger) GetHistory(ctx context.Context, memoryID, workspaceID string) ([]types.LifecycleEvent, error) {
	return l.store.GetHistory(ctx, memoryID, workspaceID)
}

// GetRecentTransitions returns at most limit events, clamped to [1,1000]
// with a default of 100, matching the CLI-facing pagination bounds used
// elsewhere in the lifecycle manager.
func (l *EventLogger) GetRecentTransitions(ctx context.Context, workspaceID string, limit int) ([]types.LifecycleEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return l.store.GetRecentTransitions(ctx, workspaceID, limit)
}

// PruneLifecycleEvents deletes events older than olderThan, returning the
// number removed.
func (l *EventLogger) PruneLifecycleEvents(ctx context.Context, workspaceID string, olderThan time.Time) (int, error) {
	return l.store.PruneLifecycleEvents(ctx, workspaceID, olderThan)
}
