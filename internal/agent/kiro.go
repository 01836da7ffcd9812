package agent

import "fmt"

// Kiro drives AWS's `kiro-cli` chat interface.
var Kiro = Agent{
	Name: "kiro",
	BuildCommand: func(task string) string {
		return fmt.Sprintf("kiro-cli chat --message %s --directory /workspace", shellQuote(task))
	},
	BuildContinueCommand: func(task string) string {
		return fmt.Sprintf("kiro-cli chat --message %s --directory /workspace --continue", shellQuote(task))
	},
	AuthVars: []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"},
}
