package types

import "time"

// ArchivedMemory mirrors Memory less the live-only fields (no decay_score,
// no vector) and adds the archival window. A memory has exactly one row
// across Memory and ArchivedMemory, never both (§3 invariant).
type ArchivedMemory struct {
	ID             string                 `json:"id"`
	WorkspaceID    string                 `json:"workspace_id"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Type           string                 `json:"type"`
	Content        string                 `json:"content"`
	Confidence     float64                `json:"confidence"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`

	LifecycleState  LifecycleState `json:"lifecycle_state"`
	LastAccessedAt  time.Time      `json:"last_accessed_at"`
	AccessCount     int            `json:"access_count"`
	ImportanceScore float64        `json:"importance_score"`

	ContentHash  string `json:"content_hash,omitempty"`
	SupersedesID string `json:"supersedes_id,omitempty"`

	ArchivedAt time.Time `json:"archived_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToMemory builds the Memory row produced by restoring this archived record:
// active state, full decay, preserved access_count, re-stamped last access.
func (a *ArchivedMemory) ToMemory(now time.Time) Memory {
	return Memory{
		ID:              a.ID,
		WorkspaceID:     a.WorkspaceID,
		ConversationID:  a.ConversationID,
		Type:            a.Type,
		Content:         a.Content,
		Confidence:      a.Confidence,
		Metadata:        a.Metadata,
		LifecycleState:  StateActive,
		LastAccessedAt:  now,
		AccessCount:     a.AccessCount,
		ImportanceScore: a.ImportanceScore,
		DecayScore:      1.0,
		ContentHash:     a.ContentHash,
		SupersedesID:    a.SupersedesID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       now,
	}
}
