package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreCreateListRestoreDelete(t *testing.T) {
	dataDir := t.TempDir()
	store, err := NewLocalStore(dataDir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("seed project file: %v", err)
	}

	id, err := store.Create(project, "pre-session")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := store.List(project)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Label != "pre-session" {
		t.Fatalf("List() = %+v, want one entry with id %q", list, id)
	}

	if err := os.Remove(filepath.Join(project, "main.go")); err != nil {
		t.Fatalf("remove project file: %v", err)
	}
	if err := store.Restore(id, project); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(project, "main.go")); err != nil {
		t.Fatalf("expected main.go to be restored: %v", err)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err = store.List(project)
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no snapshots after delete, got %+v", list)
	}
}

func TestLocalStoreListFiltersByProject(t *testing.T) {
	dataDir := t.TempDir()
	store, err := NewLocalStore(dataDir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	projectA := t.TempDir()
	projectB := t.TempDir()

	if _, err := store.Create(projectA, ""); err != nil {
		t.Fatalf("Create A: %v", err)
	}
	if _, err := store.Create(projectB, ""); err != nil {
		t.Fatalf("Create B: %v", err)
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 snapshots across both projects, got %d", len(all))
	}

	onlyA, err := store.List(projectA)
	if err != nil {
		t.Fatalf("List A: %v", err)
	}
	if len(onlyA) != 1 {
		t.Fatalf("expected 1 snapshot for project A, got %d", len(onlyA))
	}
}
