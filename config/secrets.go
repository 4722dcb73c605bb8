package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound is returned when a secret has no value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

func (s EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.Get(ctx, key); err == nil {
		return v
	}
	return def
}

// FileSecretStore reads one secret per file from a directory, as mounted by
// container orchestrators. Trailing newlines are trimmed.
type FileSecretStore struct {
	dir string
}

func NewFileSecretStore(dir string) *FileSecretStore { return &FileSecretStore{dir: dir} }

func (s *FileSecretStore) Get(_ context.Context, key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid secret name %q", key)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	v := strings.TrimRight(string(data), "\r\n")
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

func (s *FileSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.Get(ctx, key); err == nil {
		return v
	}
	return def
}

// SecretRefPrefix marks a config value that names a secret instead of
// holding it, e.g. "secret:LEADERBOARD_API_TOKEN".
const SecretRefPrefix = "secret:"

// ResolveSecrets replaces secret references in the sensitive fields of cfg.
func ResolveSecrets(ctx context.Context, cfg *Config, store SecretStore) error {
	fields := []*string{
		&cfg.Client.APIKey,
		&cfg.Auth.Credentials,
		&cfg.Storage.Redis.Password,
		&cfg.Storage.SQL.DSN,
		&cfg.Webhook.Secret,
	}
	for i := range cfg.Security.APIKeys {
		fields = append(fields, &cfg.Security.APIKeys[i])
	}
	for _, f := range fields {
		name, ok := strings.CutPrefix(*f, SecretRefPrefix)
		if !ok {
			continue
		}
		v, err := store.Get(ctx, name)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
