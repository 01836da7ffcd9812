// Package orchestrator drives a single FTL session end-to-end: snapshot
// the project, boot a sandbox, run the agent (and, in parallel, an
// optional tester), compute a reviewable diff, and either merge the
// result back into the real project or reject it, leaving the project
// untouched.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vvennela/ftl/internal/agent"
	"github.com/vvennela/ftl/internal/credentials"
	"github.com/vvennela/ftl/internal/diffengine"
	"github.com/vvennela/ftl/internal/ftllog"
	"github.com/vvennela/ftl/internal/proxy"
	"github.com/vvennela/ftl/internal/sandbox"
	"github.com/vvennela/ftl/internal/snapshot"
)

// State is a session's position in its Idle -> Booting -> Working ->
// Reviewing -> Idle lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateBooting   State = "booting"
	StateWorking   State = "working"
	StateReviewing State = "reviewing"
)

// TurnResult is what came back from running the agent (and tester, if
// configured) for one task.
type TurnResult struct {
	AgentExit   int
	AgentStdout string
	AgentStderr string

	RanTester    bool
	TesterExit   int
	TesterOutput string
}

// Config configures a new Session.
type Config struct {
	ProjectPath  string
	DataDir      string // scratch root, e.g. ~/.ftl/sessions
	AgentName    string
	TesterAgent  string // empty or not a registered agent = no automatic tester pass
	Manager      *sandbox.Manager
	Proxy        *proxy.Proxy
	CA           *proxy.CA
	Snapshots    snapshot.Store
	Guardrail    *diffengine.GuardrailConfig // nil = guardrail check disabled
	StreamOutput func(line string)
}

// Session holds all state for one FTL run against a single project.
type Session struct {
	cfg Config

	mu          sync.Mutex
	state       State
	containerID string
	workspace   string
	preSnapID   string

	agentImpl  agent.Agent
	testerImpl *agent.Agent

	diffCache []diffengine.FileChange
	diffDirty bool

	auditor *Auditor
}

// New validates the configured agents' auth vars and returns an idle
// Session. Validation happens up front so a missing ANTHROPIC_API_KEY
// fails before a container is ever booted, not mid-session.
func New(cfg Config) (*Session, error) {
	a, ok := agent.Get(cfg.AgentName)
	if !ok {
		return nil, agent.ErrUnknownAgent{Name: cfg.AgentName}
	}
	if err := checkAuthVars(a); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg, state: StateIdle, agentImpl: a}

	if cfg.TesterAgent != "" {
		if t, ok := agent.Get(cfg.TesterAgent); ok {
			if err := checkAuthVars(t); err != nil {
				return nil, err
			}
			s.testerImpl = &t
		} else {
			ftllog.Warnf("orchestrator: tester %q is not a registered agent; no tester pass will run", cfg.TesterAgent)
		}
	}

	auditor, err := NewAuditor("")
	if err != nil {
		return nil, err
	}
	s.auditor = auditor

	return s, nil
}

func checkAuthVars(a agent.Agent) error {
	for _, v := range a.AuthVars {
		if os.Getenv(v) == "" {
			return fmt.Errorf("orchestrator: agent %s requires %s to be set", a.Name, v)
		}
	}
	return nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start snapshots the project, boots a sandbox, and runs task.
func (s *Session) Start(ctx context.Context, task string) (*TurnResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: session not idle (state=%s)", s.state)
	}
	s.state = StateBooting
	s.mu.Unlock()

	if err := s.boot(ctx); err != nil {
		s.setState(StateIdle)
		return nil, err
	}

	result, err := s.runTurn(ctx, task, false)
	if err != nil {
		s.setState(StateIdle)
		return nil, err
	}

	s.setState(StateReviewing)
	return result, nil
}

// Followup runs another task against the same booted sandbox, reusing
// whatever context the agent keeps in the workspace.
func (s *Session) Followup(ctx context.Context, task string) (*TurnResult, error) {
	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: no active session to follow up on (state=%s)", s.state)
	}
	s.state = StateWorking
	s.mu.Unlock()

	result, err := s.runTurn(ctx, task, true)
	if err != nil {
		s.setState(StateReviewing)
		return nil, err
	}

	s.invalidateDiff()
	s.setState(StateReviewing)
	return result, nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) invalidateDiff() {
	s.mu.Lock()
	s.diffDirty = true
	s.mu.Unlock()
}

func (s *Session) boot(ctx context.Context) error {
	scratchRoot := filepath.Join(s.cfg.DataDir, "scratch")
	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return err
	}

	snapID, err := s.cfg.Snapshots.Create(s.cfg.ProjectPath, "pre-session")
	if err != nil {
		return fmt.Errorf("orchestrator: snapshot project: %w", err)
	}

	workspace, err := os.MkdirTemp(scratchRoot, "workspace-*")
	if err != nil {
		return err
	}
	if err := s.cfg.Snapshots.Restore(snapID, workspace); err != nil {
		return fmt.Errorf("orchestrator: materialize workspace: %w", err)
	}

	shadow, err := credentials.BuildShadowMap(s.cfg.ProjectPath, collectAgentAuthVars(s.agentImpl, s.testerImpl))
	if err != nil {
		return fmt.Errorf("orchestrator: build shadow credentials: %w", err)
	}
	s.cfg.Proxy.SetCredentials(*shadow)

	env := map[string]string{}
	for k, v := range shadow.InjectEnv {
		env[k] = v
	}
	for k, v := range s.cfg.Proxy.EnvVars("host.docker.internal") {
		env[k] = v
	}

	containerID, err := s.cfg.Manager.Boot(ctx, s.cfg.ProjectPath, workspace, env)
	if err != nil {
		return fmt.Errorf("orchestrator: boot sandbox: %w", err)
	}

	if err := installCA(ctx, s.cfg.Manager, containerID, s.cfg.CA); err != nil {
		return err
	}
	if err := s.cfg.Manager.InstallDiffScript(ctx, containerID); err != nil {
		return err
	}

	s.containerID = containerID
	s.workspace = workspace
	s.preSnapID = snapID
	s.diffDirty = true

	s.auditor.Log(AuditEvent{Type: "session_boot", ProjectPath: s.cfg.ProjectPath, ContainerID: containerID})
	return nil
}

func collectAgentAuthVars(a agent.Agent, tester *agent.Agent) []string {
	vars := append([]string{}, a.AuthVars...)
	if tester != nil {
		vars = append(vars, tester.AuthVars...)
	}
	return vars
}

// installCA writes the proxy's CA certificate into the sandbox and
// refreshes its trust store, as root since the agent's own user must not
// be able to tamper with what it trusts.
func installCA(ctx context.Context, m *sandbox.Manager, containerID string, ca *proxy.CA) error {
	script := fmt.Sprintf("cat <<'FTLCERT' > %s\n%sFTLCERT\nupdate-ca-certificates >/dev/null 2>&1 || true\n",
		proxy.CAInstallPath(), string(ca.CertPEM()))
	result, err := m.ExecAsRoot(ctx, containerID, script, 0)
	if err != nil {
		return fmt.Errorf("orchestrator: install CA: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("orchestrator: install CA failed: %s", result.Stderr)
	}
	return nil
}

// runTurn runs the agent and, if configured, a tester agent concurrently
// against the same workspace, and waits for both.
func (s *Session) runTurn(ctx context.Context, task string, followup bool) (*TurnResult, error) {
	result := &TurnResult{}
	var wg sync.WaitGroup
	var agentErr, testerErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		var res *sandbox.Result
		if followup {
			res, agentErr = s.agentImpl.Continue(ctx, s.cfg.Manager, s.containerID, task, s.cfg.StreamOutput)
		} else {
			res, agentErr = s.agentImpl.Run(ctx, s.cfg.Manager, s.containerID, task, s.cfg.StreamOutput)
		}
		if res != nil {
			result.AgentExit = res.ExitCode
			result.AgentStdout = res.Stdout
			result.AgentStderr = res.Stderr
		}
	}()

	if s.testerImpl != nil {
		result.RanTester = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			testTask := "Run this project's test suite and report failures."
			res, err := s.testerImpl.Run(ctx, s.cfg.Manager, s.containerID, testTask, nil)
			testerErr = err
			if res != nil {
				result.TesterExit = res.ExitCode
				result.TesterOutput = res.Stdout
			}
		}()
	}

	wg.Wait()

	if agentErr != nil {
		return nil, fmt.Errorf("orchestrator: agent run: %w", agentErr)
	}
	if testerErr != nil {
		ftllog.Warnf("orchestrator: tester run failed: %v", testerErr)
	}

	s.auditor.Log(AuditEvent{Type: "turn_complete", ProjectPath: s.cfg.ProjectPath, ContainerID: s.containerID, ExitCode: result.AgentExit})
	return result, nil
}

// Diff returns the current set of changes between the pre-session
// snapshot and the sandbox's workspace, computing it lazily and caching
// the result until the next agent turn invalidates it.
func (s *Session) Diff(ctx context.Context) ([]diffengine.FileChange, error) {
	s.mu.Lock()
	dirty := s.diffDirty
	s.mu.Unlock()

	if !dirty && s.diffCache != nil {
		return s.diffCache, nil
	}

	scratch, err := os.MkdirTemp(s.cfg.DataDir, "diff-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	snapRoot, err := os.MkdirTemp(s.cfg.DataDir, "diffsnap-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(snapRoot)
	if err := s.cfg.Snapshots.Restore(s.preSnapID, snapRoot); err != nil {
		return nil, err
	}

	changes, err := s.cfg.Manager.Diff(ctx, s.containerID, snapRoot, scratch, snapshot.LoadIgnoreFile(s.cfg.ProjectPath))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.diffCache = changes
	s.diffDirty = false
	s.mu.Unlock()

	return changes, nil
}

// Merge lints the diff for leaked credentials, optionally checks it
// against a Bedrock guardrail, and — if both pass — copies the sandbox's
// changes back into the real project directory.
func (s *Session) Merge(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return fmt.Errorf("orchestrator: nothing to merge (state=%s)", s.state)
	}
	s.mu.Unlock()

	changes, err := s.Diff(ctx)
	if err != nil {
		return err
	}

	shadow, err := credentials.BuildShadowMap(s.cfg.ProjectPath, nil)
	if err != nil {
		return err
	}
	var realValues []string
	for _, entry := range shadow.SwapTable {
		realValues = append(realValues, entry.Real)
	}

	if findings := diffengine.Lint(changes, realValues); len(findings) > 0 {
		s.auditor.Log(AuditEvent{Type: "merge_blocked_lint", ProjectPath: s.cfg.ProjectPath, Detail: fmt.Sprintf("%d findings", len(findings))})
		return &LintBlockedError{Findings: findings}
	}

	if s.cfg.Guardrail != nil {
		result, err := diffengine.CheckGuardrail(ctx, *s.cfg.Guardrail, diffengine.Render(changes))
		if err != nil {
			ftllog.Warnf("orchestrator: guardrail check failed, proceeding: %v", err)
		} else if result.Blocked {
			s.auditor.Log(AuditEvent{Type: "merge_blocked_guardrail", ProjectPath: s.cfg.ProjectPath})
			return &GuardrailBlockedError{Reasons: result.Reasons}
		}
	}

	if err := applyChanges(s.cfg.ProjectPath, changes); err != nil {
		return fmt.Errorf("orchestrator: apply changes: %w", err)
	}

	s.auditor.Log(AuditEvent{Type: "merge", ProjectPath: s.cfg.ProjectPath, Detail: fmt.Sprintf("%d files", len(changes))})
	return s.finish(ctx)
}

// Reject discards the sandbox's changes and leaves the real project
// untouched.
func (s *Session) Reject(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return fmt.Errorf("orchestrator: nothing to reject (state=%s)", s.state)
	}
	s.mu.Unlock()

	s.auditor.Log(AuditEvent{Type: "reject", ProjectPath: s.cfg.ProjectPath})
	return s.finish(ctx)
}

// finish returns the container to standby for reuse by the next session
// against this project, and cleans up the scratch workspace.
func (s *Session) finish(ctx context.Context) error {
	s.cfg.Manager.Standby(s.containerID)
	os.RemoveAll(s.workspace)
	s.cfg.Snapshots.Delete(s.preSnapID)

	s.mu.Lock()
	s.state = StateIdle
	s.diffCache = nil
	s.diffDirty = true
	s.mu.Unlock()
	return nil
}

// applyChanges writes each changed file's diffed content into the real
// project directory, and removes files the agent deleted. The content
// comes straight from the FileChange (captured at diff time from the
// container's live workspace) rather than from any copy made on disk,
// since that copy may already be gone by the time Merge runs.
func applyChanges(projectRoot string, changes []diffengine.FileChange) error {
	for _, c := range changes {
		dst := filepath.Join(projectRoot, c.Path)
		if c.Status == diffengine.Removed {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, c.Content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// LintBlockedError is returned by Merge when the credential-leak scanner
// finds something in the diff.
type LintBlockedError struct {
	Findings []diffengine.Finding
}

func (e *LintBlockedError) Error() string {
	return fmt.Sprintf("orchestrator: merge blocked, %d possible credential leak(s) found in diff", len(e.Findings))
}

// GuardrailBlockedError is returned by Merge when the configured Bedrock
// guardrail intervened.
type GuardrailBlockedError struct {
	Reasons []string
}

func (e *GuardrailBlockedError) Error() string {
	return fmt.Sprintf("orchestrator: merge blocked by guardrail: %v", e.Reasons)
}
