package secretsmanager

import (
	"os"
	"testing"
)

func TestLastPathComponent(t *testing.T) {
	cases := map[string]string{
		"myapp/prod/db":  "db",
		"myapp/prod/db/": "db",
		"solo":           "solo",
	}
	for in, want := range cases {
		if got := lastPathComponent(in); got != want {
			t.Errorf("lastPathComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadPrefixEmptyReturnsEmptyMap(t *testing.T) {
	got := LoadPrefix(nil, "")
	if len(got) != 0 {
		t.Fatalf("expected an empty map for an empty prefix, got %v", got)
	}
}

func TestApplyEnvSkipsAlreadySetKeys(t *testing.T) {
	t.Setenv("FTL_TEST_SECRET_EXISTING", "local-value")
	os.Unsetenv("FTL_TEST_SECRET_NEW")
	defer os.Unsetenv("FTL_TEST_SECRET_NEW")

	applied := ApplyEnv(map[string]string{
		"FTL_TEST_SECRET_EXISTING": "remote-value",
		"FTL_TEST_SECRET_NEW":      "remote-value",
	})

	if applied != 1 {
		t.Fatalf("expected exactly 1 new var applied, got %d", applied)
	}
	if os.Getenv("FTL_TEST_SECRET_EXISTING") != "local-value" {
		t.Fatal("expected an existing env var not to be overwritten")
	}
	if os.Getenv("FTL_TEST_SECRET_NEW") != "remote-value" {
		t.Fatal("expected a missing env var to be set from the secret")
	}
}
