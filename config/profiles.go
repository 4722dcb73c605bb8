package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults for a named deployment profile. Callers
// typically layer a file and the environment on top.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch name {
	case "development":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Metrics.Enabled = true

	case "testing":
		cfg.Environment = EnvTesting
		cfg.Logging.Enabled = false
		cfg.Logging.Level = "warn"
		cfg.Auth.SaveMode = "memory"
		cfg.Auth.RetryDelay = 10 * time.Millisecond
		cfg.Auth.MaxAttempts = 3
		cfg.Storage.Adapter = "memory"

	case "staging":
		cfg.Environment = EnvStaging
		cfg.Auth.SaveMode = "persistent"
		cfg.Storage.Adapter = "file"
		cfg.Metrics.Enabled = true

	case "production":
		cfg.Environment = EnvProduction
		cfg.Logging.Level = "warn"
		cfg.Auth.SaveMode = "persistent"
		cfg.Storage.Adapter = "redis"
		cfg.Client.Workers = 4
		cfg.Client.QueueSize = 256
		cfg.Metrics.Enabled = true
		cfg.Bridge.CORSOrigin = ""
		cfg.Security.EnableRateLimit = true

	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}

	return cfg, nil
}
