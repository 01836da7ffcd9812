package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Manager boots and reuses the single Docker container backing an FTL
// session's sandbox. Containers are kept warm across agent turns: Boot
// tries, in order, a record of a still-running container for this
// project, an in-process standby container from a prior session in the
// same process, and only then creates a fresh one.
type Manager struct {
	docker *Client
	record *RecordStore

	standbyMu sync.Mutex
	standbyID string

	// fresh reports whether the most recent Boot created a new container
	// (true) or reused a warm one (false); see WasFresh.
	fresh bool
}

// NewManager wires a Manager around an already-validated docker Client and
// a container index persisted at recordPath.
func NewManager(docker *Client, recordPath string) (*Manager, error) {
	record, err := OpenRecordStore(recordPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: open record store: %w", err)
	}
	return &Manager{docker: docker, record: record}, nil
}

// Close closes the manager's record store database.
func (m *Manager) Close() error {
	return m.record.Close()
}

// WasFresh reports whether the last Boot call created a brand-new
// container rather than reusing a warm one.
func (m *Manager) WasFresh() bool {
	return m.fresh
}

// Boot returns a running container id for projectPath, mounting
// workspaceDir at /workspace and setting env. It reuses a warm container
// when one is available, wiping its workspace first, and otherwise
// creates one from scratch.
func (m *Manager) Boot(ctx context.Context, projectPath, workspaceDir string, env map[string]string) (string, error) {
	absProject, err := filepath.Abs(projectPath)
	if err != nil {
		return "", err
	}

	release, err := m.record.LockProject(absProject)
	if err != nil {
		return "", err
	}
	rec, recOK := m.record.Lookup(absProject)
	claimed := recOK && m.docker.IsRunning(ctx, rec.ContainerID)
	if claimed {
		// Delete now, while still holding the lock, so a concurrent Boot
		// for this same project that loses the race falls through to
		// create its own container instead of also reusing this one. The
		// record reappears only via Put, on this project's next
		// boot/standby cycle.
		m.record.Delete(absProject)
	}
	release()

	if claimed {
		m.fresh = false
		if err := m.resetWorkspace(ctx, rec.ContainerID, workspaceDir, env); err != nil {
			return "", err
		}
		return rec.ContainerID, nil
	}

	m.standbyMu.Lock()
	standby := m.standbyID
	m.standbyID = ""
	m.standbyMu.Unlock()

	if standby != "" && m.docker.IsRunning(ctx, standby) {
		m.fresh = false
		if err := m.resetWorkspace(ctx, standby, workspaceDir, env); err != nil {
			return "", err
		}
		if err := m.record.Put(absProject, standby); err != nil {
			return "", err
		}
		return standby, nil
	}

	m.fresh = true
	name := fmt.Sprintf("ftl-%s", uuid.New().String()[:8])
	cfg := DefaultContainerConfig(name, workspaceDir)
	for k, v := range env {
		cfg.Env[k] = v
	}

	containerID, err := m.docker.Create(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("sandbox: boot container for %s: %w", absProject, err)
	}
	if err := m.record.Put(absProject, containerID); err != nil {
		return "", err
	}
	return containerID, nil
}

// resetWorkspace wipes a reused container's /workspace and copies
// workspaceDir (the session's materialized snapshot) into it, then
// re-exports env so the new turn's
// credentials are visible to subsequent execs via the sourced env file.
func (m *Manager) resetWorkspace(ctx context.Context, containerID, workspaceDir string, env map[string]string) error {
	if _, err := m.docker.Run(ctx, "exec", containerID, "sh", "-c", "rm -rf /workspace/* /workspace/.[!.]* 2>/dev/null; true"); err != nil {
		return fmt.Errorf("sandbox: reset workspace: %w", err)
	}
	result, err := m.docker.Run(ctx, "cp", workspaceDir+"/.", containerID+":/workspace/")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("sandbox: docker cp into %s failed: %s", containerID, result.Stderr)
	}
	if _, err := m.docker.Run(ctx, "exec", containerID, "chown", "-R", "ftl:ftl", "/workspace"); err != nil {
		return fmt.Errorf("sandbox: chown workspace: %w", err)
	}
	return writeEnvFile(ctx, m.docker, containerID, env)
}

// Standby marks containerID as reusable by the next Boot call in this
// process without waiting on the on-disk record.
func (m *Manager) Standby(containerID string) {
	m.standbyMu.Lock()
	m.standbyID = containerID
	m.standbyMu.Unlock()
}

// Destroy force-removes a container and clears its record.
func (m *Manager) Destroy(ctx context.Context, projectPath, containerID string) error {
	if err := m.docker.Remove(ctx, containerID); err != nil {
		return err
	}
	absProject, err := filepath.Abs(projectPath)
	if err == nil {
		m.record.Delete(absProject)
	}
	return nil
}

// EnsureDataDir creates and returns dir, used for per-project scratch
// space (workspace staging, diff scripts) outside the container.
func EnsureDataDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
