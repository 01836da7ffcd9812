package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vvennela/ftl/internal/diffengine"
)

func TestApplyChangesWritesModifiedAndRemovesDeleted(t *testing.T) {
	project := t.TempDir()

	if err := os.WriteFile(filepath.Join(project, "keep.txt"), []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(project, "gone.txt"), []byte("bye\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Content is what Diff would have captured from the container's live
	// workspace at diff time — applyChanges must write this, not re-read
	// any directory on disk, since that copy is gone by merge time.
	changes := []diffengine.FileChange{
		{Path: "keep.txt", Status: diffengine.Modified, Content: []byte("new\n")},
		{Path: "nested/added.txt", Status: diffengine.Added, Content: []byte("hi\n")},
		{Path: "gone.txt", Status: diffengine.Removed},
	}

	if err := applyChanges(project, changes); err != nil {
		t.Fatalf("applyChanges: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(project, "keep.txt"))
	if err != nil || string(data) != "new\n" {
		t.Errorf("keep.txt = %q, %v; want new content", data, err)
	}

	added, err := os.ReadFile(filepath.Join(project, "nested", "added.txt"))
	if err != nil || string(added) != "hi\n" {
		t.Errorf("nested/added.txt = %q, %v; want copied content", added, err)
	}

	if _, err := os.Stat(filepath.Join(project, "gone.txt")); !os.IsNotExist(err) {
		t.Errorf("expected gone.txt to be removed, got err=%v", err)
	}
}

func TestApplyChangesRemoveMissingFileIsNotError(t *testing.T) {
	project := t.TempDir()

	changes := []diffengine.FileChange{{Path: "never-existed.txt", Status: diffengine.Removed}}
	if err := applyChanges(project, changes); err != nil {
		t.Fatalf("applyChanges: %v", err)
	}
}

func TestLintBlockedErrorMessage(t *testing.T) {
	err := &LintBlockedError{Findings: []diffengine.Finding{{Path: "a.go", Rule: "x"}}}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestGuardrailBlockedErrorMessage(t *testing.T) {
	err := &GuardrailBlockedError{Reasons: []string{"violence"}}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestAuditorLogAndTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs.jsonl")

	a, err := NewAuditor(path)
	if err != nil {
		t.Fatal(err)
	}
	a.Log(AuditEvent{Type: "session_boot", ProjectPath: "/tmp/proj"})
	a.Log(AuditEvent{Type: "merge", ProjectPath: "/tmp/proj"})

	events, err := Tail(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != "session_boot" || events[1].Type != "merge" {
		t.Errorf("unexpected event order: %+v", events)
	}
}

func TestAuditorTailLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs.jsonl")

	a, err := NewAuditor(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		a.Log(AuditEvent{Type: "event"})
	}

	events, err := Tail(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
}

func TestNewRejectsUnknownAgent(t *testing.T) {
	_, err := New(Config{AgentName: "not-a-real-agent"})
	if err == nil {
		t.Fatal("expected error for unknown agent")
	}
}
