package agent

import "testing"

func TestGetKnownAgent(t *testing.T) {
	a, ok := Get("claude-code")
	if !ok {
		t.Fatal("expected claude-code to be registered")
	}
	if a.BuildCommand("fix the bug") == "" {
		t.Error("expected non-empty command")
	}
}

func TestGetUnknownAgent(t *testing.T) {
	if _, ok := Get("does-not-exist"); ok {
		t.Error("expected unknown agent lookup to fail")
	}
}

func TestBuildCommandQuotesTask(t *testing.T) {
	cmd := Codex.BuildCommand("don't break things")
	want := `cd /workspace && codex --approval-mode full-auto 'don'\''t break things'`
	if cmd != want {
		t.Errorf("BuildCommand() = %q, want %q", cmd, want)
	}
}
