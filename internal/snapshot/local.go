package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const metaFileName = ".ftl_meta"

// LocalStore stores each snapshot as a plain directory tree under dataDir,
// one subdirectory per snapshot id.
type LocalStore struct {
	dataDir string
}

// NewLocalStore returns a Store rooted at dataDir, creating it if needed.
func NewLocalStore(dataDir string) (*LocalStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create data dir: %w", err)
	}
	return &LocalStore{dataDir: dataDir}, nil
}

type localMeta struct {
	ProjectPath string    `json:"project_path"`
	CreatedAt   time.Time `json:"created_at"`
	Label       string    `json:"label,omitempty"`
}

func (s *LocalStore) Create(projectPath, label string) (string, error) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return "", err
	}

	id, err := newID()
	if err != nil {
		return "", err
	}
	dest := filepath.Join(s.dataDir, id)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create %s: %w", id, err)
	}

	ignorePatterns := LoadIgnoreFile(absPath)
	if err := copyTree(absPath, dest, absPath, ignorePatterns); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("snapshot: copy tree: %w", err)
	}

	meta := localMeta{ProjectPath: absPath, CreatedAt: time.Now(), Label: label}
	if err := writeMeta(dest, meta); err != nil {
		os.RemoveAll(dest)
		return "", err
	}

	return id, nil
}

func (s *LocalStore) Restore(id, projectPath string) error {
	src := filepath.Join(s.dataDir, id)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("snapshot: %s not found: %w", id, err)
	}
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return err
	}
	return copyTree(src, absPath, src, nil)
}

func (s *LocalStore) List(projectPath string) ([]Info, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var filterAbs string
	if projectPath != "" {
		filterAbs, _ = filepath.Abs(projectPath)
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.dataDir, e.Name())
		meta, err := readMeta(dir)
		if err != nil {
			continue
		}
		if filterAbs != "" && meta.ProjectPath != filterAbs {
			continue
		}
		out = append(out, Info{
			ID:          e.Name(),
			ProjectPath: meta.ProjectPath,
			CreatedAt:   meta.CreatedAt,
			Label:       meta.Label,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *LocalStore) Delete(id string) error {
	dir := filepath.Join(s.dataDir, id)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("snapshot: %s not found: %w", id, err)
	}
	return os.RemoveAll(dir)
}

func writeMeta(dir string, meta localMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFileName), data, 0o644)
}

func readMeta(dir string) (localMeta, error) {
	var meta localMeta
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// copyTree recursively copies src into dst, skipping anything matched by
// ShouldIgnore and the snapshot's own metadata file. File permissions and
// modification times are preserved so subsequent diffs see only real
// content changes.
func copyTree(src, dst, root string, ignorePatterns []string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := info.Name()
		if name == metaFileName {
			return nil
		}
		if ShouldIgnore(name, rel, ignorePatterns) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, strings.TrimPrefix(path, src+string(filepath.Separator)))

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}

		if info.Mode()&os.ModeSymlink != 0 {
			linkDest, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linkDest, target)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyFile(path, target, info.Mode().Perm()); err != nil {
			return err
		}
		return os.Chtimes(target, info.ModTime(), info.ModTime())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
