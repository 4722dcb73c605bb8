package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"leaderboardkit/adapters/sqlx"
	"leaderboardkit/bootstrap"
	"leaderboardkit/core"
)

// Validate validates the service client configuration
func (c *ClientConfig) Validate() error {
	var errs []string

	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "base_url must be an absolute URL")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.Workers < 0 {
		errs = append(errs, "workers cannot be negative")
	}
	if c.Workers > 0 && c.QueueSize <= 0 {
		errs = append(errs, "queue_size must be positive when workers are set")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates identity settings
func (a *AuthConfig) Validate() error {
	var errs []string

	if _, err := bootstrap.ParseSaveMode(a.SaveMode); err != nil {
		errs = append(errs, err.Error())
	}
	if a.RetryDelay <= 0 {
		errs = append(errs, "retry_delay must be positive")
	}
	if a.MaxAttempts < 0 {
		errs = append(errs, "max_attempts cannot be negative")
	}
	if a.Credentials != "" && !strings.HasPrefix(a.Credentials, SecretRefPrefix) {
		if _, err := core.ParseCredentials(a.Credentials); err != nil {
			errs = append(errs, fmt.Sprintf("credentials: %v", err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	validAdapters := []string{"memory", "redis", "sql", "file"}
	if !slices.Contains(validAdapters, s.Adapter) {
		return fmt.Errorf("adapter must be one of: %s", strings.Join(validAdapters, ", "))
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			return fmt.Errorf("file config: %w", err)
		}
	case "redis":
		if s.Redis.Addr == "" {
			return errors.New("redis config: addr cannot be empty")
		}
	case "sql":
		if s.SQL.Driver != sqlx.DriverPostgres && s.SQL.Driver != sqlx.DriverMySQL {
			return fmt.Errorf("sql config: driver must be %s or %s", sqlx.DriverPostgres, sqlx.DriverMySQL)
		}
		if s.SQL.DSN == "" {
			return errors.New("sql config: dsn cannot be empty")
		}
	}
	return nil
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	if levels := []string{"debug", "info", "warn", "error"}; !slices.Contains(levels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(levels, ", ")))
	}
	if formats := []string{"json", "text"}; !slices.Contains(formats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(formats, ", ")))
	}
	if outputs := []string{"stdout", "stderr"}; !slices.Contains(outputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(outputs, ", ")))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		return errors.New("path must start with / when metrics are enabled")
	}
	return nil
}

// Validate validates the local bridge configuration
func (b *BridgeConfig) Validate() error {
	var errs []string

	if b.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if b.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if b.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if b.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if b.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if b.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates webhook endpoints and event filters
func (w *WebhookConfig) Validate() error {
	for _, ep := range w.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoint %q must be an http(s) URL", ep)
		}
	}
	for _, name := range w.Events {
		if !slices.Contains(core.AllEventTypes, core.EventType(name)) {
			return fmt.Errorf("unknown event type %q", name)
		}
	}
	return nil
}

// Validate validates security settings
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
