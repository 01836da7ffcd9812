package diffengine

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCompareDetectsAddedModifiedRemoved(t *testing.T) {
	oldRoot := t.TempDir()
	newRoot := t.TempDir()

	writeFile(t, filepath.Join(oldRoot, "keep.txt"), "a\nb\nc\n")
	writeFile(t, filepath.Join(newRoot, "keep.txt"), "a\nb\nc\n")

	writeFile(t, filepath.Join(oldRoot, "change.txt"), "one\ntwo\nthree\n")
	writeFile(t, filepath.Join(newRoot, "change.txt"), "one\nTWO\nthree\n")

	writeFile(t, filepath.Join(oldRoot, "gone.txt"), "bye\n")

	writeFile(t, filepath.Join(newRoot, "new.txt"), "hello\n")

	changes, err := Compare(oldRoot, newRoot, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	byPath := map[string]FileChange{}
	for _, c := range changes {
		byPath[c.Path] = c
	}

	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}
	if _, ok := byPath["keep.txt"]; ok {
		t.Errorf("keep.txt should not appear, it is unchanged")
	}
	if c, ok := byPath["change.txt"]; !ok || c.Status != Modified {
		t.Errorf("change.txt should be modified, got %+v", c)
	}
	if c, ok := byPath["gone.txt"]; !ok || c.Status != Removed {
		t.Errorf("gone.txt should be removed, got %+v", c)
	}
	if c, ok := byPath["new.txt"]; !ok || c.Status != Added {
		t.Errorf("new.txt should be added, got %+v", c)
	}
}

func TestCompareCapturesNewContent(t *testing.T) {
	oldRoot := t.TempDir()
	newRoot := t.TempDir()

	writeFile(t, filepath.Join(oldRoot, "change.txt"), "one\n")
	writeFile(t, filepath.Join(newRoot, "change.txt"), "two\n")
	writeFile(t, filepath.Join(newRoot, "new.txt"), "hello\n")

	changes, err := Compare(oldRoot, newRoot, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	for _, c := range changes {
		switch c.Path {
		case "change.txt":
			if string(c.Content) != "two\n" {
				t.Errorf("change.txt Content = %q, want %q", c.Content, "two\n")
			}
		case "new.txt":
			if string(c.Content) != "hello\n" {
				t.Errorf("new.txt Content = %q, want %q", c.Content, "hello\n")
			}
		}
	}
}

func TestCompareIgnoresGitDir(t *testing.T) {
	oldRoot := t.TempDir()
	newRoot := t.TempDir()
	writeFile(t, filepath.Join(oldRoot, ".git", "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, filepath.Join(newRoot, ".git", "HEAD"), "ref: refs/heads/other\n")

	changes, err := Compare(oldRoot, newRoot, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected .git to be ignored, got %+v", changes)
	}
}

func TestLintFindsRealSecretAndPattern(t *testing.T) {
	changes := []FileChange{
		{
			Path: "app.py",
			Hunks: []Hunk{
				{
					NewStart: 1,
					Lines: []Line{
						{OpInsert, "key = \"sk_live_abcdef1234567890\""},
						{OpInsert, "aws_secret_access_key = \"abcd\""},
					},
				},
			},
		},
	}

	findings := Lint(changes, []string{"sk_live_abcdef1234567890"})
	if len(findings) == 0 {
		t.Fatal("expected at least one finding")
	}

	var foundRealSecret bool
	for _, f := range findings {
		if f.Rule == "real credential value" {
			foundRealSecret = true
		}
	}
	if !foundRealSecret {
		t.Errorf("expected real credential value finding, got %+v", findings)
	}
}

func TestLooksBinary(t *testing.T) {
	if !looksBinary("image.png", []byte("anything")) {
		t.Error("expected .png to be treated as binary by extension")
	}
	if !looksBinary("data.bin", []byte{0x00, 0x01, 0x02}) {
		t.Error("expected NUL byte to trigger binary detection")
	}
	if looksBinary("main.go", []byte("package main\n")) {
		t.Error("expected plain text to not be binary")
	}
}
