package agent

import "fmt"

// Aider drives the `aider` CLI with git disabled — FTL owns diffing via
// its own snapshot/restore cycle, not aider's commits.
var Aider = Agent{
	Name: "aider",
	BuildCommand: func(task string) string {
		return fmt.Sprintf("cd /workspace && aider --yes --no-git --message %s", shellQuote(task))
	},
	BuildContinueCommand: func(task string) string {
		// aider persists .aider.chat.history.md in the workspace, which
		// the next invocation picks up automatically.
		return fmt.Sprintf("cd /workspace && aider --yes --no-git --message %s", shellQuote(task))
	},
	AuthVars: []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY"},
}
