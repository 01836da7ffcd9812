package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateShadowKeyFormat(t *testing.T) {
	key, err := GenerateShadowKey("STRIPE_KEY")
	if err != nil {
		t.Fatalf("GenerateShadowKey returned error: %v", err)
	}
	want := "ftl_shadow_stripe_key_"
	if len(key) != len(want)+16 {
		t.Fatalf("expected length %d, got %d (%s)", len(want)+16, len(key), key)
	}
	if key[:len(want)] != want {
		t.Errorf("expected prefix %q, got %q", want, key)
	}
}

func TestBuildShadowMapFromDotenv(t *testing.T) {
	dir := t.TempDir()
	envContent := "STRIPE_KEY=sk_live_abc\nEMPTY_VAR=\n# a comment\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envContent), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	shadowMap, err := BuildShadowMap(dir, nil)
	if err != nil {
		t.Fatalf("BuildShadowMap returned error: %v", err)
	}

	placeholder, ok := shadowMap.InjectEnv["STRIPE_KEY"]
	if !ok {
		t.Fatalf("expected STRIPE_KEY in InjectEnv, got %v", shadowMap.InjectEnv)
	}
	if _, ok := shadowMap.InjectEnv["EMPTY_VAR"]; ok {
		t.Errorf("EMPTY_VAR should have been skipped (empty value)")
	}

	found := false
	for _, entry := range shadowMap.SwapTable {
		if entry.Placeholder == placeholder {
			found = true
			if entry.Real != "sk_live_abc" {
				t.Errorf("expected real value sk_live_abc, got %s", entry.Real)
			}
		}
	}
	if !found {
		t.Fatalf("placeholder %s not found in swap table", placeholder)
	}
}

func TestBuildShadowMapExtraVars(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("FTL_TEST_EXTRA_VAR", "super-secret")
	defer os.Unsetenv("FTL_TEST_EXTRA_VAR")

	shadowMap, err := BuildShadowMap(dir, []string{"FTL_TEST_EXTRA_VAR"})
	if err != nil {
		t.Fatalf("BuildShadowMap returned error: %v", err)
	}
	if _, ok := shadowMap.InjectEnv["FTL_TEST_EXTRA_VAR"]; !ok {
		t.Fatalf("expected FTL_TEST_EXTRA_VAR in InjectEnv, got %v", shadowMap.InjectEnv)
	}
}

func TestSaveAndLoadFTLCredential(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SOME_FTL_KEY", "")
	os.Unsetenv("SOME_FTL_KEY")

	if err := SaveFTLCredential("SOME_FTL_KEY", "abc123"); err != nil {
		t.Fatalf("SaveFTLCredential returned error: %v", err)
	}

	path, err := FTLCredentialsFile()
	if err != nil {
		t.Fatalf("FTLCredentialsFile returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat credentials file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
	}

	os.Unsetenv("SOME_FTL_KEY")
	creds, err := LoadFTLCredentials()
	if err != nil {
		t.Fatalf("LoadFTLCredentials returned error: %v", err)
	}
	if creds["SOME_FTL_KEY"] != "abc123" {
		t.Errorf("expected abc123, got %s", creds["SOME_FTL_KEY"])
	}
	if os.Getenv("SOME_FTL_KEY") != "abc123" {
		t.Errorf("expected env var to be set after load")
	}
}
