package types

import "time"

// Relationship is a directed edge between two memories (§3). Both endpoints
// must currently exist in either the hot or archived table; relationships
// whose other endpoint is gone are pruned by the storage adapter.
type Relationship struct {
	ID               string    `json:"id"`
	FromMemoryID     string    `json:"from_memory_id"`
	ToMemoryID       string    `json:"to_memory_id"`
	RelationshipType string    `json:"relationship_type"`
	Confidence       float64   `json:"confidence"`
	CreatedAt        time.Time `json:"created_at"`
}
