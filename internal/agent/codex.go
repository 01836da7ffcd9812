package agent

import "fmt"

// Codex drives OpenAI's `codex` CLI with prompts skipped so it can run
// unattended inside the sandbox.
var Codex = Agent{
	Name: "codex",
	BuildCommand: func(task string) string {
		return fmt.Sprintf("cd /workspace && codex --approval-mode full-auto %s", shellQuote(task))
	},
	BuildContinueCommand: func(task string) string {
		// Codex has no native session-continue flag; workspace state from
		// the prior run carries the context forward.
		return fmt.Sprintf("cd /workspace && codex --approval-mode full-auto %s", shellQuote(task))
	},
	AuthVars: []string{"OPENAI_API_KEY"},
}
