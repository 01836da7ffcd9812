// Package snapshot persists point-in-time copies of a project's working
// tree so a session can be restored to a known-good state after an agent
// run is rejected.
package snapshot

import "time"

// Info describes a stored snapshot without loading its contents.
type Info struct {
	ID          string    `json:"id"`
	ProjectPath string    `json:"project_path"`
	CreatedAt   time.Time `json:"created_at"`
	Label       string    `json:"label,omitempty"`
}

// Store creates, restores, lists, and deletes project snapshots.
type Store interface {
	// Create snapshots projectPath and returns the new snapshot's id.
	Create(projectPath, label string) (string, error)

	// Restore overlays the snapshot identified by id onto projectPath,
	// overwriting any files the snapshot contains.
	Restore(id, projectPath string) error

	// List returns all known snapshots, optionally filtered to a single
	// project path, newest first.
	List(projectPath string) ([]Info, error)

	// Delete removes the snapshot identified by id.
	Delete(id string) error
}

func newID() (string, error) {
	return randomHex(4)
}
