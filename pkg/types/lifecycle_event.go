package types

import "time"

// LifecycleEvent is an append-only audit record of a single lifecycle
// transition (§3, §4.6). Events are never mutated; history for a memory,
// ordered by CreatedAt, must form a valid walk through the state machine.
type LifecycleEvent struct {
	ID            string                 `json:"id"`
	MemoryID      string                 `json:"memory_id"`
	WorkspaceID   string                 `json:"workspace_id"`
	PreviousState LifecycleState         `json:"previous_state"`
	NewState      LifecycleState         `json:"new_state"`
	Reason        string                 `json:"reason"`
	TriggeredBy   TriggeredBy            `json:"triggered_by"`
	UserID        string                 `json:"user_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
