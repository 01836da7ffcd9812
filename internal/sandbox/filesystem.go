package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// envFilePath is sourced by every exec'd command so that credentials
// rotated between agent turns (re-shadowed keys, a follow-up's updated
// AGENT_AUTH_VARS) take effect without restarting the container. Passing
// env solely via `docker exec --env` per call was tried first and dropped:
// it doesn't persist across the agent's own child processes the way a
// sourced file does.
const envFilePath = "/tmp/.ftl_env"

// writeEnvFile renders env as `export KEY='VALUE'` lines and writes it
// into the container at envFilePath via stdin, replacing any existing
// contents.
func writeEnvFile(ctx context.Context, c *Client, containerID string, env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "export %s=%s\n", k, shellQuote(env[k]))
	}

	return writeFileFromStdin(ctx, c, containerID, envFilePath, sb.String())
}

// writeFileFromStdin streams content into path inside the container using
// `sh -c "cat > path"`, the same cat-from-stdin idiom used for injecting
// the in-container diff-listing script.
func writeFileFromStdin(ctx context.Context, c *Client, containerID, path, content string) error {
	cmd := exec.CommandContext(ctx, c.binaryPath, "exec", "-i", containerID, "/bin/sh", "-c", fmt.Sprintf("cat > %s", shellQuote(path)))
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sandbox: write %s: %w: %s", path, err, stderr.String())
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
