// Package secretsmanager loads credentials from an AWS Secrets Manager
// prefix into the process environment, so a team can share a project's
// API keys without committing them to a .env file.
package secretsmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// LoadPrefix fetches every secret under prefix and returns a flat
// KEY -> value map. A secret whose value is a JSON object is expanded
// into one entry per key; a plain-string secret is keyed by the last
// path component of its name, upper-cased. Any failure (no credentials,
// network error, malformed secret) is swallowed and an empty map is
// returned — a missing or unreachable Secrets Manager must never block
// a session from starting with whatever local credentials are already
// available.
func LoadPrefix(ctx context.Context, prefix string) map[string]string {
	secrets := map[string]string{}
	if prefix == "" {
		return secrets
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return secrets
	}
	client := secretsmanager.NewFromConfig(awsCfg)

	names, err := listSecretsByPrefix(ctx, client, prefix)
	if err != nil {
		return secrets
	}

	for _, name := range names {
		value, err := getSecretValue(ctx, client, name)
		if err != nil {
			continue
		}

		var parsed map[string]any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			for k, v := range parsed {
				secrets[k] = fmt.Sprintf("%v", v)
			}
			continue
		}

		key := strings.ToUpper(lastPathComponent(name))
		secrets[key] = value
	}

	return secrets
}

func listSecretsByPrefix(ctx context.Context, client *secretsmanager.Client, prefix string) ([]string, error) {
	var names []string

	paginator := secretsmanager.NewListSecretsPaginator(client, &secretsmanager.ListSecretsInput{
		Filters: []types.Filter{
			{Key: types.FilterNameStringTypeName, Values: []string{prefix}},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range page.SecretList {
			if s.Name != nil {
				names = append(names, *s.Name)
			}
		}
	}
	return names, nil
}

func getSecretValue(ctx context.Context, client *secretsmanager.Client, name string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &name})
	if err != nil {
		return "", err
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secretsmanager: %s has no string value", name)
	}
	return *out.SecretString, nil
}

func lastPathComponent(name string) string {
	name = strings.TrimSuffix(name, "/")
	parts := strings.Split(name, "/")
	return parts[len(parts)-1]
}

// ApplyEnv sets each secret as a process environment variable, skipping
// any key already set — explicit local env vars always win over a
// shared Secrets Manager value.
func ApplyEnv(secrets map[string]string) int {
	applied := 0
	for key, value := range secrets {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, value)
		applied++
	}
	return applied
}
