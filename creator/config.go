package creator

import (
	"fmt"
	"log/slog"
	"net/http"

	"leaderboardkit/adapters/jsonfile"
	mem "leaderboardkit/adapters/memory"
	redisAdapter "leaderboardkit/adapters/redis"
	sqlxAdapter "leaderboardkit/adapters/sqlx"
	"leaderboardkit/bootstrap"
	"leaderboardkit/config"
	"leaderboardkit/core"
	"leaderboardkit/engine"
	"leaderboardkit/integrations/webhook"
	sdk "leaderboardkit/sdk/go"
)

// OpenStore creates the identifier store selected by cfg. The returned
// close function is never nil.
func OpenStore(cfg config.StorageConfig) (engine.IdentifierStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "file":
		s, err := jsonfile.New(cfg.File.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.SQL)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage adapter: %s", cfg.Adapter)
	}
}

// FromConfig builds a Creator from loaded configuration. opts are applied
// after the configured ones and win on conflict.
func FromConfig(cfg *config.Config, opts ...Option) (*Creator, error) {
	mode, err := bootstrap.ParseSaveMode(cfg.Auth.SaveMode)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithSaveMode(mode),
		WithRetryPolicy(bootstrap.RetryPolicy{
			Delay:       cfg.Auth.RetryDelay,
			MaxAttempts: cfg.Auth.MaxAttempts,
		}),
		WithLoggingEnabled(cfg.Logging.Enabled),
		WithClientOptions(
			sdk.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
			sdk.WithRoutes(cfg.Client.Routes),
		),
	}
	if cfg.Client.APIKey != "" {
		base = append(base, WithClientOptions(sdk.WithAPIKey(cfg.Client.APIKey)))
	}

	if mode == bootstrap.SavePersistent {
		store, closeStore, err := OpenStore(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Adapter, err)
		}
		base = append(base, WithStore(store), WithCloser(closeStore))
	}

	if cfg.Client.Workers > 0 {
		pool := engine.NewWorkerPool(cfg.Client.Workers, cfg.Client.QueueSize)
		base = append(base, WithRunner(pool), WithCloser(func() error {
			pool.Close()
			return nil
		}))
	}

	if len(cfg.Webhook.Endpoints) > 0 {
		types := make([]core.EventType, 0, len(cfg.Webhook.Events))
		for _, t := range cfg.Webhook.Events {
			types = append(types, core.EventType(t))
		}
		sinkOpts := []webhook.Option{
			webhook.WithEventTypes(types...),
			webhook.WithSecret(cfg.Webhook.Secret),
		}
		if cfg.Logging.Enabled {
			sinkOpts = append(sinkOpts, webhook.WithLogger(slog.Default()))
		}
		base = append(base, WithSink(webhook.New(cfg.Webhook.Endpoints, sinkOpts...)))
	}

	c, err := New(cfg.Client.BaseURL, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.Credentials != "" {
		if err := c.SetUserData(cfg.Auth.Credentials); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("apply configured credentials: %w", err)
		}
	}
	return c, nil
}
