// Package agent adapts FTL's session orchestration to the handful of
// coding-agent CLIs it knows how to drive: each Agent implementation
// shells out to its vendor's tool inside the sandbox and reports back the
// exit code plus captured output.
package agent

import (
	"context"
	"fmt"

	"github.com/vvennela/ftl/internal/sandbox"
)

// Agent runs a coding task inside an already-booted sandbox container.
type Agent struct {
	// Name identifies the agent for CLI selection (e.g. "claude-code").
	Name string
	// BuildCommand renders the shell command line to run for a fresh task.
	BuildCommand func(task string) string
	// BuildContinueCommand renders the shell command for a follow-up turn,
	// given the agent already ran once in this workspace.
	BuildContinueCommand func(task string) string
	// AuthVars lists the environment variable names this agent's CLI
	// itself needs to authenticate (distinct from the project's own
	// shadowed credentials) — checked fail-fast before a session boots.
	AuthVars []string
}

// Run executes a fresh task, streaming output through callback if set.
func (a Agent) Run(ctx context.Context, m *sandbox.Manager, containerID, task string, callback sandbox.StreamCallback) (*sandbox.Result, error) {
	cmd := a.BuildCommand(task)
	if callback != nil {
		return m.ExecStream(ctx, containerID, cmd, 0, callback)
	}
	return m.Exec(ctx, containerID, cmd, 0)
}

// Continue runs a follow-up task against a workspace the agent already
// has context in (either via its own session file or because the
// workspace's prior edits are still present).
func (a Agent) Continue(ctx context.Context, m *sandbox.Manager, containerID, task string, callback sandbox.StreamCallback) (*sandbox.Result, error) {
	cmd := a.BuildContinueCommand(task)
	if callback != nil {
		return m.ExecStream(ctx, containerID, cmd, 0, callback)
	}
	return m.Exec(ctx, containerID, cmd, 0)
}

// ErrUnknownAgent is returned by Get for an unregistered agent name.
type ErrUnknownAgent struct{ Name string }

func (e ErrUnknownAgent) Error() string {
	return fmt.Sprintf("agent: unknown agent %q, available: %v", e.Name, Names())
}
