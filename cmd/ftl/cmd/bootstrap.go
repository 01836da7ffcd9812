package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vvennela/ftl/internal/config"
	"github.com/vvennela/ftl/internal/diffengine"
	"github.com/vvennela/ftl/internal/orchestrator"
	"github.com/vvennela/ftl/internal/proxy"
	"github.com/vvennela/ftl/internal/sandbox"
	"github.com/vvennela/ftl/internal/secretsmanager"
	"github.com/vvennela/ftl/internal/snapshot"
)

// ftlHome returns ~/.ftl, creating it if needed.
func ftlHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".ftl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// buildSnapshotStore constructs the snapshot backend named by cfg, local
// directory storage unless "s3" is explicitly configured.
func buildSnapshotStore(cfg *config.Config, home string) (snapshot.Store, error) {
	if cfg.SnapshotBackend != "s3" {
		return snapshot.NewLocalStore(filepath.Join(home, "snapshots"))
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("config: snapshot_backend is \"s3\" but s3_bucket is not set")
	}
	return snapshot.NewS3Store(snapshot.S3Config{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
		CacheDir: filepath.Join(home, "snapshot-cache"),
	})
}

// sessionEnv opens a session's supporting infrastructure: a docker client,
// a container manager backed by the shared on-disk record, and a proxy
// bound to an ephemeral port with a fresh CA.
type sessionEnv struct {
	manager *sandbox.Manager
	prox    *proxy.Proxy
	ca      *proxy.CA
	store   snapshot.Store
	home    string
}

func newSessionEnv(cfg *config.Config) (*sessionEnv, error) {
	home, err := ftlHome()
	if err != nil {
		return nil, err
	}

	if prefix := cfg.SecretsManagerPrefix; prefix != "" {
		secrets := secretsmanager.LoadPrefix(context.Background(), prefix)
		secretsmanager.ApplyEnv(secrets)
	}

	docker, err := sandbox.NewClient()
	if err != nil {
		return nil, err
	}
	manager, err := sandbox.NewManager(docker, filepath.Join(home, "containers.db"))
	if err != nil {
		return nil, err
	}

	ca, err := proxy.NewEphemeralCA()
	if err != nil {
		manager.Close()
		return nil, err
	}
	p, err := proxy.New(ca, "127.0.0.1:0")
	if err != nil {
		manager.Close()
		return nil, err
	}

	store, err := buildSnapshotStore(cfg, home)
	if err != nil {
		p.Close()
		manager.Close()
		return nil, err
	}

	return &sessionEnv{manager: manager, prox: p, ca: ca, store: store, home: home}, nil
}

func (e *sessionEnv) Close() {
	e.prox.Close()
	e.manager.Close()
}

// newOrchestratorConfig builds an orchestrator.Config for projectPath
// using cfg's agent/tester/guardrail settings.
func (e *sessionEnv) newOrchestratorConfig(cfg *config.Config, projectPath string) orchestrator.Config {
	oc := orchestrator.Config{
		ProjectPath: projectPath,
		DataDir:     filepath.Join(e.home, "sessions"),
		AgentName:   cfg.Agent,
		TesterAgent: cfg.Tester,
		Manager:     e.manager,
		Proxy:       e.prox,
		CA:          e.ca,
		Snapshots:   e.store,
		StreamOutput: func(line string) {
			fmt.Println(line)
		},
	}
	if cfg.GuardrailID != "" {
		oc.Guardrail = &diffengine.GuardrailConfig{
			Region:      cfg.GuardrailRegion,
			GuardrailID: cfg.GuardrailID,
			Version:     cfg.GuardrailVersion,
		}
	}
	return oc
}
