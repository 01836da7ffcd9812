// Package sandbox manages the Docker container each FTL session runs the
// coding agent inside: booting a fresh or warm-standby container, mounting
// the project workspace, executing commands with a timeout, and parking
// the container on standby for reuse when the session ends (Destroy
// removes it).
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Image is the container image FTL boots agent sandboxes from.
const Image = "ftl-sandbox:latest"

// Client wraps the docker CLI for container operations.
type Client struct {
	binaryPath string
}

// NewClient creates a Docker client, failing if the docker binary isn't
// on PATH — FTL has no other container backend to fall back to.
func NewClient() (*Client, error) {
	path, err := exec.LookPath("docker")
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker not found in PATH: %w", err)
	}
	return &Client{binaryPath: path}, nil
}

// ExecResult holds the output from a docker command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes a docker subcommand and returns its result. A non-zero
// exit code is not itself an error — callers inspect ExitCode.
func (c *Client) Run(ctx context.Context, args ...string) (*ExecResult, error) {
	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("sandbox: docker exec failed: %w", err)
	}
	return result, nil
}

// RunJSON executes a docker command and parses its JSON stdout into dest.
func (c *Client) RunJSON(ctx context.Context, dest interface{}, args ...string) error {
	result, err := c.Run(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("sandbox: docker %v failed (exit %d): %s", args, result.ExitCode, result.Stderr)
	}
	return json.Unmarshal([]byte(result.Stdout), dest)
}

// ImageExists reports whether Image is already present locally.
func (c *Client) ImageExists(ctx context.Context) bool {
	result, err := c.Run(ctx, "image", "inspect", Image)
	return err == nil && result.ExitCode == 0
}

// PullOrBuildImage pulls Image from the registry, falling back to building
// it from dockerfilePath (the image bundled with an FTL install) if no
// registry image exists yet — used by `ftl setup`.
func (c *Client) PullOrBuildImage(ctx context.Context, dockerfilePath string) error {
	if result, err := c.Run(ctx, "pull", Image); err == nil && result.ExitCode == 0 {
		return nil
	}
	if dockerfilePath == "" {
		return fmt.Errorf("sandbox: image %s not available and no Dockerfile to build from", Image)
	}
	if _, err := os.Stat(dockerfilePath); err != nil {
		return fmt.Errorf("sandbox: dockerfile %s not found: %w", dockerfilePath, err)
	}
	result, err := c.Run(ctx, "build", "-t", Image, "-f", dockerfilePath, ".")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("sandbox: build %s failed: %s", Image, result.Stderr)
	}
	return nil
}

// IsRunning reports whether the named container is alive.
func (c *Client) IsRunning(ctx context.Context, containerID string) bool {
	result, err := c.Run(ctx, "inspect", "-f", "{{.State.Running}}", containerID)
	return err == nil && result.ExitCode == 0 && bytes.Contains([]byte(result.Stdout), []byte("true"))
}

// Remove force-removes a container.
func (c *Client) Remove(ctx context.Context, containerID string) error {
	result, err := c.Run(ctx, "rm", "-f", containerID)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("sandbox: rm %s failed: %s", containerID, result.Stderr)
	}
	return nil
}
