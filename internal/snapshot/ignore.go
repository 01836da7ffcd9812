package snapshot

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// AlwaysIgnore is the set of directory and file names that are never copied
// into a snapshot, regardless of project configuration.
var AlwaysIgnore = map[string]bool{
	".git":            true,
	".ftl":            true,
	"node_modules":    true,
	"__pycache__":     true,
	".venv":           true,
	"venv":            true,
	".tox":            true,
	".mypy_cache":     true,
	".pytest_cache":   true,
	".ruff_cache":     true,
	"dist":            true,
	"build":           true,
	".next":           true,
	".terraform":      true,
	"target":          true,
	".DS_Store":       true,
}

func hasIgnoredSuffix(name string) bool {
	switch {
	case strings.HasSuffix(name, ".egg-info"):
		return true
	case strings.HasSuffix(name, ".dist-info"):
		return true
	case strings.HasSuffix(name, ".pyc"):
		return true
	}
	return false
}

// LoadIgnoreFile reads .ftlignore from projectPath, one glob pattern per
// line, blank lines and "#"-prefixed comments skipped. A missing file is
// not an error.
func LoadIgnoreFile(projectPath string) []string {
	f, err := os.Open(filepath.Join(projectPath, ".ftlignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// ShouldIgnore reports whether name (a single path component) or relPath
// (the path relative to the project root) should be excluded from a
// snapshot.
func ShouldIgnore(name, relPath string, extra []string) bool {
	if AlwaysIgnore[name] || hasIgnoredSuffix(name) {
		return true
	}
	for _, pattern := range extra {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(relPath, strings.TrimSuffix(pattern, "/")+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
