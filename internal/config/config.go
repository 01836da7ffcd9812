// Package config resolves FTL's layered configuration: built-in defaults,
// the user's global ~/.ftl/config.json, and a project's .ftlconfig found
// by walking up from the working directory, the same way git locates
// .git.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	projectConfigName = ".ftlconfig"
)

// requiredKeys must be present once a project .ftlconfig is found —
// global defaults alone are never enough to run a session.
var requiredKeys = []string{"agent", "tester"}

// defaults seeds every layer below the user's own global and project
// configuration.
var defaults = map[string]any{
	"agent":  "claude-code",
	"tester": "claude-haiku-4-5-20251001",
}

// Config is the merged configuration for a single ftl invocation.
type Config struct {
	Agent                string `json:"agent"`
	Tester               string `json:"tester"`
	SnapshotBackend      string `json:"snapshot_backend,omitempty"` // "local" (default) or "s3"
	S3Bucket             string `json:"s3_bucket,omitempty"`
	S3Region             string `json:"s3_region,omitempty"`
	S3Endpoint           string `json:"s3_endpoint,omitempty"`
	SecretsManagerPrefix string `json:"secrets_manager_prefix,omitempty"`
	GuardrailID          string `json:"guardrail_id,omitempty"`
	GuardrailVersion     string `json:"guardrail_version,omitempty"`
	GuardrailRegion      string `json:"guardrail_region,omitempty"`
	ShadowEnv            []string `json:"shadow_env,omitempty"`
	AgentEnv             []string `json:"agent_env,omitempty"`

	// raw holds the full merged key set, including keys Config doesn't
	// model explicitly.
	raw map[string]any
}

// GlobalConfigPath returns ~/.ftl/config.json.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ftl", "config.json"), nil
}

// loadJSONFile reads a JSON object file, returning an empty map for a
// missing file.
func loadJSONFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: invalid JSON in %s: %w", path, err)
	}
	return m, nil
}

// LoadGlobal reads ~/.ftl/config.json, set up by `ftl setup`.
func LoadGlobal() (map[string]any, error) {
	path, err := GlobalConfigPath()
	if err != nil {
		return nil, err
	}
	return loadJSONFile(path)
}

// SaveGlobal merges updates into ~/.ftl/config.json.
func SaveGlobal(updates map[string]any) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	existing, err := loadJSONFile(path)
	if err != nil {
		return err
	}
	for k, v := range updates {
		existing[k] = v
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// FindProjectConfig walks up from startDir (cwd if empty) looking for
// .ftlconfig, returning "" if none is found before reaching the
// filesystem root.
func FindProjectConfig(startDir string) (string, error) {
	dir := startDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, projectConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load merges defaults, the global config, and a project's .ftlconfig (if
// found by walking up from cwd), in that order of increasing precedence.
// A project config missing agent or tester is an error — global defaults
// alone don't satisfy spec's "every session names its agent and tester"
// invariant once a project has opted in by creating .ftlconfig.
func Load() (*Config, error) {
	merged := map[string]any{}
	for k, v := range defaults {
		merged[k] = v
	}

	global, err := LoadGlobal()
	if err != nil {
		return nil, err
	}
	for k, v := range global {
		merged[k] = v
	}

	projectPath, err := FindProjectConfig("")
	if err != nil {
		return nil, err
	}
	if projectPath != "" {
		project, err := loadJSONFile(projectPath)
		if err != nil {
			return nil, err
		}
		for k, v := range project {
			merged[k] = v
		}

		var missing []string
		for _, key := range requiredKeys {
			if _, ok := project[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("config: missing required keys in %s: %v", projectPath, missing)
		}
	}

	return decode(merged)
}

func decode(merged map[string]any) (*Config, error) {
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	cfg := &Config{raw: merged}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode merged config: %w", err)
	}
	return cfg, nil
}

// Init creates a .ftlconfig in dir (cwd if empty), seeded from the global
// config's agent/tester or the built-in defaults, overridden by agent and
// tester if non-empty.
func Init(dir, agent, tester string) (string, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	global, err := LoadGlobal()
	if err != nil {
		return "", err
	}

	pick := func(explicit string, key string) string {
		if explicit != "" {
			return explicit
		}
		if v, ok := global[key].(string); ok && v != "" {
			return v
		}
		return defaults[key].(string)
	}

	init := map[string]string{
		"agent":  pick(agent, "agent"),
		"tester": pick(tester, "tester"),
	}

	data, err := json.MarshalIndent(init, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, projectConfigName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// UpdateProjectConfig merges updates into the .ftlconfig at path, preserving
// any keys it doesn't model explicitly. Used by `ftl config --aws` to add
// snapshot/guardrail settings to a project that already has agent/tester
// configured.
func UpdateProjectConfig(path string, updates map[string]any) error {
	existing, err := loadJSONFile(path)
	if err != nil {
		return err
	}
	for k, v := range updates {
		existing[k] = v
	}
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
