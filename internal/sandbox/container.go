package sandbox

import (
	"context"
	"fmt"
	"sort"
)

// ContainerConfig describes how to create a sandbox container.
type ContainerConfig struct {
	Name        string
	Image       string
	Env         map[string]string
	Memory      string // e.g. "2g"
	CPUs        string // e.g. "2"
	NetworkMode string
	WorkspaceDir string // host path mounted at /workspace
}

// DefaultContainerConfig returns the resource caps and network settings a
// session's agent container should run with: generous enough for a real
// coding agent, capped so a single session can't starve the host.
func DefaultContainerConfig(name, workspaceDir string) ContainerConfig {
	return ContainerConfig{
		Name:         name,
		Image:        Image,
		Env:          make(map[string]string),
		Memory:       "2g",
		CPUs:         "2",
		NetworkMode:  "bridge",
		WorkspaceDir: workspaceDir,
	}
}

// Create starts a detached container per cfg and returns its id.
func (c *Client) Create(ctx context.Context, cfg ContainerConfig) (string, error) {
	args := []string{
		"run", "-d",
		"--name", cfg.Name,
		"--network", cfg.NetworkMode,
		"--add-host", "host.docker.internal:host-gateway",
		"--memory", cfg.Memory,
		"--cpus", cfg.CPUs,
		"-v", cfg.WorkspaceDir + ":/workspace:rw",
		"-w", "/workspace",
	}

	// Sort env keys for deterministic, diffable `docker run` invocations
	// (and so tests can assert on argument order).
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, cfg.Env[k]))
	}

	args = append(args, cfg.Image, "sleep", "infinity")

	result, err := c.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("sandbox: create container: %s", result.Stderr)
	}
	return trimNewline(result.Stdout), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
