package types

import "time"

// ValidMemoryTypes lists the memory content types the Memory Extractor
// (§4.16) and classification prompts recognize.
var ValidMemoryTypes = []string{
	"decision", "process", "concept", "event", "person", "system",
	"rule", "project", "epic", "phase", "milestone", "task", "step",
}

// IsValidMemoryType reports whether t is one of ValidMemoryTypes.
func IsValidMemoryType(t string) bool {
	for _, v := range ValidMemoryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Memory is the primary record of the system: a piece of semantic content
// with a confidence value, an embedding kept in the vector index, optional
// relationships to other memories, and a lifecycle state that evolves over
// time based on access, importance, age, and pinning (§3).
type Memory struct {
	// Identity
	ID             string `json:"id"`
	WorkspaceID    string `json:"workspace_id"`
	ConversationID string `json:"conversation_id,omitempty"`

	// Content
	Type       string                 `json:"type"`
	Content    string                 `json:"content"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	// Lifecycle
	LifecycleState  LifecycleState `json:"lifecycle_state"`
	LastAccessedAt  time.Time      `json:"last_accessed_at"`
	AccessCount     int            `json:"access_count"`
	ImportanceScore float64        `json:"importance_score"`
	DecayScore      float64        `json:"decay_score"`
	EffectiveTTL    *int64         `json:"effective_ttl_ms,omitempty"`
	Pinned          bool           `json:"pinned"`
	PinnedBy        string         `json:"pinned_by,omitempty"`
	PinnedAt        *time.Time     `json:"pinned_at,omitempty"`
	ArchivedAt      *time.Time     `json:"archived_at,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`

	// ContentHash is the hex SHA-256 of Content, set by the store on create
	// and indexed per workspace; no ingest or dedup step looks memories up
	// by it.
	ContentHash string `json:"content_hash,omitempty"`

	// SupersedesID links this memory to the one it replaces, forming an
	// evolution chain (supplemented feature; see SPEC_FULL.md §5).
	SupersedesID string `json:"supersedes_id,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultMemory returns a Memory with the spec's required initial lifecycle
// fields: active, full decay, zero access, neutral importance, unpinned.
func DefaultMemory() Memory {
	now := time.Now()
	return Memory{
		LifecycleState:  StateActive,
		LastAccessedAt:  now,
		AccessCount:     0,
		ImportanceScore: 0.5,
		DecayScore:      1.0,
		Confidence:      1.0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// InRange01 reports whether v lies in [0,1], inclusive.
func InRange01(v float64) bool {
	return v >= 0 && v <= 1
}

// ValidateInvariants checks the per-memory invariants from spec §3:
// decay/importance/confidence ranges, the pinned<=>state=pinned
// correspondence, and archived_at consistency.
func (m *Memory) ValidateInvariants() error {
	if !InRange01(m.DecayScore) {
		return &FieldRangeError{Field: "decay_score", Value: m.DecayScore}
	}
	if !InRange01(m.ImportanceScore) {
		return &FieldRangeError{Field: "importance_score", Value: m.ImportanceScore}
	}
	if !InRange01(m.Confidence) {
		return &FieldRangeError{Field: "confidence", Value: m.Confidence}
	}
	if m.Pinned != (m.LifecycleState == StatePinned) {
		return &InvariantError{Reason: "pinned flag must match lifecycle_state=pinned"}
	}
	wantArchivedAt := m.LifecycleState == StateArchived || m.LifecycleState == StateExpired
	hasArchivedAt := m.ArchivedAt != nil
	if wantArchivedAt != hasArchivedAt {
		return &InvariantError{Reason: "archived_at must be set iff lifecycle_state is archived or expired"}
	}
	return nil
}

// FieldRangeError reports a [0,1]-ranged field holding an out-of-range value.
type FieldRangeError struct {
	Field string
	Value float64
}

func (e *FieldRangeError) Error() string {
	return "field " + e.Field + " out of range [0,1]"
}

// InvariantError reports a violated cross-field invariant.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Reason
}
