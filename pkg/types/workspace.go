package types

import "time"

// WorkspaceType distinguishes personal brains from shared team workspaces.
type WorkspaceType string

const (
	WorkspacePersonal WorkspaceType = "personal"
	WorkspaceTeam     WorkspaceType = "team"
)

// Workspace is the scoping unit for every memory, relationship, and
// lifecycle event in the system. All store operations are workspace-local;
// cross-workspace reads are a caller error.
type Workspace struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      WorkspaceType `json:"type"`
	OwnerID   string        `json:"owner_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
