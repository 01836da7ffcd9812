package agent

import "fmt"

// ClaudeCode drives Anthropic's `claude` CLI non-interactively.
var ClaudeCode = Agent{
	Name: "claude-code",
	BuildCommand: func(task string) string {
		return fmt.Sprintf("claude -p %s --directory /workspace", shellQuote(task))
	},
	BuildContinueCommand: func(task string) string {
		// --continue resumes the most recent session in this directory.
		return fmt.Sprintf("claude -p %s --continue --directory /workspace", shellQuote(task))
	},
	AuthVars: []string{"ANTHROPIC_API_KEY"},
}
