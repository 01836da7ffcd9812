// Package credentials implements the shadow-credential mapper: loading real
// secrets from a project's environment and minting opaque per-session
// placeholders so a sandboxed agent never observes a real value.
package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/vvennela/ftl/internal/ftllog"
)

// ShadowPrefix is prepended to every minted placeholder.
const ShadowPrefix = "ftl_shadow_"

// FTLCredentialsFile holds FTL's own infrastructure auth (Anthropic key,
// Bedrock token, etc.) so the user does not export env vars every session.
func FTLCredentialsFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ftl", "credentials"), nil
}

// LoadFTLCredentials reads ~/.ftl/credentials and sets any key not already
// present in the process environment. Returns the parsed key/value pairs.
// Missing file is not an error — it returns an empty map.
func LoadFTLCredentials() (map[string]string, error) {
	path, err := FTLCredentialsFile()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	creds := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		creds[key] = value
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
	return creds, nil
}

// SaveFTLCredential writes or updates a single KEY=VALUE line in
// ~/.ftl/credentials, creating the file with mode 0600 if needed, and sets
// the value in the current process environment.
func SaveFTLCredential(key, value string) error {
	path, err := FTLCredentialsFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	var lines []string
	found := false
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			stripped := strings.TrimSpace(line)
			if stripped != "" && !strings.HasPrefix(stripped, "#") && strings.Contains(stripped, "=") {
				k, _, _ := strings.Cut(stripped, "=")
				if strings.TrimSpace(k) == key {
					lines = append(lines, fmt.Sprintf("%s=%s", key, value))
					found = true
					continue
				}
			}
			lines = append(lines, line)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if !found {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}

	content := strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	os.Setenv(key, value)
	return nil
}

// GenerateShadowKey mints a placeholder of the form
// ftl_shadow_<lowername>_<16 hex chars>.
func GenerateShadowKey(name string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate shadow suffix: %w", err)
	}
	return fmt.Sprintf("%s%s_%s", ShadowPrefix, strings.ToLower(name), hex.EncodeToString(buf)), nil
}

// SwapEntry is one row of the swap table: a minted placeholder and the real
// value it stands in for. The table is kept as an ordered slice (not a map)
// so the proxy's byte-substitution pass is deterministic, per spec's
// "ordering of replacements must be stable" requirement.
type SwapEntry struct {
	Placeholder string
	Real        string
}

// ShadowMap is the two-table structure built at session start: InjectEnv
// maps real variable names to their minted placeholders (what gets written
// into the sandbox's environment), and SwapTable is the ordered
// placeholder→real mapping the proxy uses to reverse the substitution.
type ShadowMap struct {
	InjectEnv map[string]string
	SwapTable []SwapEntry
}

// loadRealKeys reads every KEY=VALUE pair from the project's .env file
// (tolerating quotes, comments, and blank lines via godotenv) plus any
// extraVars also present in the process environment. Empty values are
// skipped silently, and a .env file that cannot be parsed is logged and
// skipped — this never fails fatally.
func loadRealKeys(projectPath string, extraVars []string) (map[string]string, error) {
	realKeys := map[string]string{}

	envFile := filepath.Join(projectPath, ".env")
	if _, err := os.Stat(envFile); err == nil {
		parsed, err := godotenv.Read(envFile)
		if err != nil {
			ftllog.Warnf("credentials: skipping unparsable %s: %v", envFile, err)
		}
		for key, value := range parsed {
			if value != "" {
				realKeys[key] = value
			}
		}
	}

	for _, key := range extraVars {
		if _, have := realKeys[key]; have {
			continue
		}
		if value, set := os.LookupEnv(key); set && value != "" {
			realKeys[key] = value
		}
	}

	return realKeys, nil
}

// BuildShadowMap constructs the shadow map for a session: for every real
// credential found under projectPath (plus extraVars), mint one
// cryptographically random placeholder. Key iteration is sorted so the
// resulting SwapTable ordering is deterministic across runs given the same
// input keys.
func BuildShadowMap(projectPath string, extraVars []string) (*ShadowMap, error) {
	realKeys, err := loadRealKeys(projectPath, extraVars)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(realKeys))
	for name := range realKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	shadowMap := &ShadowMap{
		InjectEnv: make(map[string]string, len(names)),
		SwapTable: make([]SwapEntry, 0, len(names)),
	}

	for _, name := range names {
		shadowValue, err := GenerateShadowKey(name)
		if err != nil {
			return nil, err
		}
		shadowMap.InjectEnv[name] = shadowValue
		shadowMap.SwapTable = append(shadowMap.SwapTable, SwapEntry{
			Placeholder: shadowValue,
			Real:        realKeys[name],
		})
	}

	return shadowMap, nil
}
