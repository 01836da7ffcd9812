package cmd

import "testing"

func TestMatchAgentFallsBackToFirstChoice(t *testing.T) {
	if got := matchAgent("9"); got.key != agentChoices[0].key {
		t.Fatalf("matchAgent(\"9\") = %q, want fallback %q", got.key, agentChoices[0].key)
	}
	if got := matchAgent("3"); got.key != "aider" {
		t.Fatalf("matchAgent(\"3\") = %q, want aider", got.key)
	}
}

func TestMatchTesterSkipOptionHasEmptyModel(t *testing.T) {
	got := matchTester("3")
	if got.model != "" {
		t.Fatalf("expected the skip choice to carry an empty model, got %q", got.model)
	}
}

func TestDockerfilePathForAgentEmptyForClaudeCode(t *testing.T) {
	if got := dockerfilePathForAgent("claude-code"); got != "" {
		t.Fatalf("expected no dockerfile override for claude-code, got %q", got)
	}
}
