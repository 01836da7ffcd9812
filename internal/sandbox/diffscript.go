package sandbox

import (
	"context"
	"fmt"

	"github.com/vvennela/ftl/internal/diffengine"
)

// diffScriptPath is where the walk/hash helper script is installed inside
// the sandbox before a diff is requested.
const diffScriptPath = "/tmp/.ftl_diffscript.sh"

// diffScript walks /workspace and prints one JSON object per line:
// {"path":"...", "size":N}. Binary detection and line-level comparison
// happen on the host side in internal/diffengine, which already has the
// pre-run snapshot to compare against — the in-container half only needs
// to report what currently exists.
const diffScript = `#!/bin/sh
cd /workspace || exit 1
find . -type f ! -path './.git/*' ! -path './node_modules/*' ! -path './__pycache__/*' | while read -r f; do
  size=$(stat -c %s "$f" 2>/dev/null || stat -f %z "$f" 2>/dev/null || echo 0)
  printf '{"path":"%s","size":%s}\n' "$(echo "$f" | sed 's/^\.\///' | sed 's/"/\\"/g')" "$size"
done
`

// InstallDiffScript writes the walk helper into the container.
func (m *Manager) InstallDiffScript(ctx context.Context, containerID string) error {
	if err := writeFileFromStdin(ctx, m.docker, containerID, diffScriptPath, diffScript); err != nil {
		return fmt.Errorf("sandbox: install diff script: %w", err)
	}
	if _, err := m.Exec(ctx, containerID, fmt.Sprintf("chmod +x %s", diffScriptPath), 0); err != nil {
		return fmt.Errorf("sandbox: chmod diff script: %w", err)
	}
	return nil
}

// Diff restores the container's current /workspace into a temp directory
// via `docker cp`, then hands both that and the pre-run snapshot to
// diffengine.Compare. docker cp is used instead of parsing the walk
// script's listing directly so file contents — not just paths — are
// available for line-level comparison.
func (m *Manager) Diff(ctx context.Context, containerID, snapshotRoot, scratchDir string, extraIgnore []string) ([]diffengine.FileChange, error) {
	result, err := m.docker.Run(ctx, "cp", containerID+":/workspace/.", scratchDir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: copy workspace for diff: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("sandbox: docker cp for diff failed: %s", result.Stderr)
	}

	return diffengine.Compare(snapshotRoot, scratchDir, extraIgnore)
}
