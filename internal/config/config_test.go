package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func withHome(t *testing.T, dir string) {
	t.Helper()
	old := os.Getenv("HOME")
	os.Setenv("HOME", dir)
	t.Cleanup(func() { os.Setenv("HOME", old) })
}

func withCwd(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadDefaultsWithNoConfigFiles(t *testing.T) {
	withHome(t, t.TempDir())
	withCwd(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Agent != "claude-code" {
		t.Errorf("expected default agent claude-code, got %s", cfg.Agent)
	}
	if cfg.Tester != "claude-haiku-4-5-20251001" {
		t.Errorf("expected default tester, got %s", cfg.Tester)
	}
}

func TestLoadMergesGlobalOverDefaults(t *testing.T) {
	home := t.TempDir()
	withHome(t, home)
	withCwd(t, t.TempDir())

	if err := SaveGlobal(map[string]any{"agent": "codex"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Agent != "codex" {
		t.Errorf("expected global override agent codex, got %s", cfg.Agent)
	}
	if cfg.Tester != "claude-haiku-4-5-20251001" {
		t.Errorf("expected default tester to survive, got %s", cfg.Tester)
	}
}

func TestLoadMergesProjectOverGlobal(t *testing.T) {
	withHome(t, t.TempDir())

	project := t.TempDir()
	withCwd(t, project)

	data := []byte(`{"agent":"aider","tester":"claude-haiku-4-5-20251001","s3_bucket":"my-bucket"}`)
	if err := os.WriteFile(filepath.Join(project, ".ftlconfig"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Agent != "aider" {
		t.Errorf("expected project override agent aider, got %s", cfg.Agent)
	}
	if cfg.S3Bucket != "my-bucket" {
		t.Errorf("expected s3_bucket my-bucket, got %s", cfg.S3Bucket)
	}
}

func TestLoadMissingRequiredKeyInProjectConfigErrors(t *testing.T) {
	withHome(t, t.TempDir())

	project := t.TempDir()
	withCwd(t, project)

	if err := os.WriteFile(filepath.Join(project, ".ftlconfig"), []byte(`{"agent":"aider"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected error for project config missing tester")
	}
}

func TestFindProjectConfigWalksUpToParent(t *testing.T) {
	withHome(t, t.TempDir())

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".ftlconfig"), []byte(`{"agent":"claude-code","tester":"claude-haiku-4-5-20251001"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := FindProjectConfig(nested)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, ".ftlconfig")
	if found != want {
		t.Errorf("FindProjectConfig() = %q, want %q", found, want)
	}
}

func TestInitWritesAgentAndTester(t *testing.T) {
	withHome(t, t.TempDir())
	dir := t.TempDir()

	path, err := Init(dir, "codex", "")
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"agent": "codex"`) {
		t.Errorf("expected agent codex in %s, got %s", path, data)
	}
	if !strings.Contains(string(data), `"tester": "claude-haiku-4-5-20251001"`) {
		t.Errorf("expected default tester in %s, got %s", path, data)
	}
}
