package sandbox

import (
	"path/filepath"
	"testing"
)

func TestRecordStorePutLookupDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenRecordStore(filepath.Join(dir, "containers.db"))
	if err != nil {
		t.Fatalf("OpenRecordStore: %v", err)
	}
	defer store.Close()

	if _, ok := store.Lookup("/proj/a"); ok {
		t.Fatal("expected no record before Put")
	}

	if err := store.Put("/proj/a", "container-1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, ok := store.Lookup("/proj/a")
	if !ok || rec.ContainerID != "container-1" {
		t.Fatalf("Lookup = %+v, %v; want container-1", rec, ok)
	}

	if err := store.Delete("/proj/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.Lookup("/proj/a"); ok {
		t.Fatal("expected no record after Delete")
	}
}

func TestRecordStoreLockProjectIsPerProject(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenRecordStore(filepath.Join(dir, "containers.db"))
	if err != nil {
		t.Fatalf("OpenRecordStore: %v", err)
	}
	defer store.Close()

	releaseA, err := store.LockProject("/proj/a")
	if err != nil {
		t.Fatalf("LockProject a: %v", err)
	}

	// A different project's lock must not block on project a's lock.
	releaseB, err := store.LockProject("/proj/b")
	if err != nil {
		t.Fatalf("LockProject b should not block on an unrelated project's lock: %v", err)
	}
	releaseB()
	releaseA()
}

func TestRecordStoreLockProjectReentrantAfterRelease(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenRecordStore(filepath.Join(dir, "containers.db"))
	if err != nil {
		t.Fatalf("OpenRecordStore: %v", err)
	}
	defer store.Close()

	release, err := store.LockProject("/proj/a")
	if err != nil {
		t.Fatalf("LockProject: %v", err)
	}
	release()

	// Released, so acquiring again for the same project must succeed
	// immediately rather than deadlock.
	release2, err := store.LockProject("/proj/a")
	if err != nil {
		t.Fatalf("LockProject after release: %v", err)
	}
	release2()
}
