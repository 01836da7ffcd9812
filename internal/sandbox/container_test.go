package sandbox

import "testing"

func TestShellQuote(t *testing.T) {
	cases := map[string]string{
		"plain":        "'plain'",
		"it's":         `'it'\''s'`,
		"":             "''",
	}
	for in, want := range cases {
		if got := shellQuote(in); got != want {
			t.Errorf("shellQuote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultContainerConfig(t *testing.T) {
	cfg := DefaultContainerConfig("ftl-abc123", "/tmp/workspace")
	if cfg.Memory != "2g" {
		t.Errorf("Memory = %q, want 2g", cfg.Memory)
	}
	if cfg.CPUs != "2" {
		t.Errorf("CPUs = %q, want 2", cfg.CPUs)
	}
	if cfg.NetworkMode != "bridge" {
		t.Errorf("NetworkMode = %q, want bridge", cfg.NetworkMode)
	}
	if cfg.Image != Image {
		t.Errorf("Image = %q, want %q", cfg.Image, Image)
	}
}
