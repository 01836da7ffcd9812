// Package diffengine computes a reviewable line-level diff between a
// project snapshot and its current working tree.
package diffengine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Status describes how a file changed between the two trees being compared.
type Status string

const (
	Added    Status = "added"
	Removed  Status = "removed"
	Modified Status = "modified"
)

// OpType is the kind of a single diff line.
type OpType string

const (
	OpEqual  OpType = "equal"
	OpInsert OpType = "insert"
	OpDelete OpType = "delete"
)

// Line is one line of a hunk, tagged with how it relates to the old text.
type Line struct {
	Type OpType
	Text string
}

// Hunk is a contiguous run of changed lines plus surrounding context.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
	Lines              []Line
}

// FileChange describes one file's difference between the two trees.
type FileChange struct {
	Path   string
	Status Status
	Binary bool
	Hunks  []Hunk

	// Content is the file's raw bytes in the new tree (nil for Removed).
	// Merge writes this directly rather than re-reading the tree Compare
	// was given, since that tree (a docker cp scratch copy, typically) is
	// torn down as soon as Compare returns.
	Content []byte
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true, ".o": true,
	".class": true, ".jar": true, ".wasm": true, ".pyc": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
}

// looksBinary reports whether data should be treated as binary: a known
// binary extension, or the presence of a NUL byte in the first 8KB.
func looksBinary(path string, data []byte) bool {
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	probe := data
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) != -1
}

// Compare walks oldRoot and newRoot and returns the set of file-level
// changes between them, applying extraIgnore (e.g. from .ftlignore) in
// addition to the built-in exclusion set.
func Compare(oldRoot, newRoot string, extraIgnore []string) ([]FileChange, error) {
	oldFiles, err := listFiles(oldRoot, extraIgnore)
	if err != nil {
		return nil, fmt.Errorf("diffengine: walk %s: %w", oldRoot, err)
	}
	newFiles, err := listFiles(newRoot, extraIgnore)
	if err != nil {
		return nil, fmt.Errorf("diffengine: walk %s: %w", newRoot, err)
	}

	paths := map[string]bool{}
	for p := range oldFiles {
		paths[p] = true
	}
	for p := range newFiles {
		paths[p] = true
	}

	var changes []FileChange
	for path := range paths {
		_, inOld := oldFiles[path]
		_, inNew := newFiles[path]

		switch {
		case inOld && !inNew:
			data, err := os.ReadFile(filepath.Join(oldRoot, path))
			if err != nil {
				return nil, err
			}
			changes = append(changes, fileChangeFor(path, Removed, data, nil))
		case !inOld && inNew:
			data, err := os.ReadFile(filepath.Join(newRoot, path))
			if err != nil {
				return nil, err
			}
			changes = append(changes, fileChangeFor(path, Added, nil, data))
		default:
			oldData, err := os.ReadFile(filepath.Join(oldRoot, path))
			if err != nil {
				return nil, err
			}
			newData, err := os.ReadFile(filepath.Join(newRoot, path))
			if err != nil {
				return nil, err
			}
			if bytes.Equal(oldData, newData) {
				continue
			}
			changes = append(changes, fileChangeFor(path, Modified, oldData, newData))
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func fileChangeFor(path string, status Status, oldData, newData []byte) FileChange {
	if looksBinary(path, oldData) || looksBinary(path, newData) {
		return FileChange{Path: path, Status: status, Binary: true, Content: newData}
	}
	oldLines := splitLines(oldData)
	newLines := splitLines(newData)
	return FileChange{
		Path:    path,
		Status:  status,
		Hunks:   hunksFor(oldLines, newLines),
		Content: newData,
	}
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := string(data)
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func listFiles(root string, extraIgnore []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return out, nil
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := info.Name()
		if isDiffIgnored(name) || matchesAny(extraIgnore, name, rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		out[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	return out, err
}

func matchesAny(patterns []string, name, rel string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
	}
	return false
}
