package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"leaderboardkit/adapters/redis"
	"leaderboardkit/adapters/sqlx"
	sdk "leaderboardkit/sdk/go"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete SDK and bridge configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" yaml:"environment" env:"LEADERBOARD_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"LEADERBOARD_PROFILE"`

	// Leaderboard service client
	Client ClientConfig `json:"client" yaml:"client"`

	// Device identifier acquisition
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Identifier storage
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Local HTTP bridge
	Bridge BridgeConfig `json:"bridge" yaml:"bridge"`

	// Security configuration for the bridge
	Security SecurityConfig `json:"security" yaml:"security"`

	// Outbound event webhooks
	Webhook WebhookConfig `json:"webhook" yaml:"webhook"`
}

// ClientConfig configures the leaderboard service client
type ClientConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url" env:"LEADERBOARD_BASE_URL"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"LEADERBOARD_API_KEY"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"LEADERBOARD_CLIENT_TIMEOUT"`
	// Workers > 0 runs requests on a bounded pool instead of a goroutine each.
	Workers   int        `json:"workers" yaml:"workers" env:"LEADERBOARD_CLIENT_WORKERS"`
	QueueSize int        `json:"queue_size" yaml:"queue_size" env:"LEADERBOARD_CLIENT_QUEUE_SIZE"`
	Routes    sdk.Routes `json:"routes" yaml:"routes"`
}

// AuthConfig configures identity handling
type AuthConfig struct {
	// SaveMode is persistent, memory or unhandled.
	SaveMode    string        `json:"save_mode" yaml:"save_mode" env:"LEADERBOARD_AUTH_SAVE_MODE"`
	RetryDelay  time.Duration `json:"retry_delay" yaml:"retry_delay" env:"LEADERBOARD_AUTH_RETRY_DELAY"`
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" env:"LEADERBOARD_AUTH_MAX_ATTEMPTS"`
	// Credentials optionally seeds the session with "username,mode,token".
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty" env:"LEADERBOARD_AUTH_CREDENTIALS"`
}

// StorageConfig holds identifier store configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" yaml:"adapter" env:"LEADERBOARD_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" yaml:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty" yaml:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty" yaml:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" yaml:"path" env:"LEADERBOARD_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Enabled    bool              `json:"enabled" yaml:"enabled" env:"LEADERBOARD_LOG_ENABLED"`
	Level      string            `json:"level" yaml:"level" env:"LEADERBOARD_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"LEADERBOARD_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"LEADERBOARD_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"LEADERBOARD_METRICS_ENABLED"`
	Path    string `json:"path" yaml:"path" env:"LEADERBOARD_METRICS_PATH"`
}

// BridgeConfig holds the local HTTP bridge configuration
type BridgeConfig struct {
	Address           string        `json:"address" yaml:"address" env:"LEADERBOARD_BRIDGE_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"LEADERBOARD_BRIDGE_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" yaml:"cors_origin" env:"LEADERBOARD_BRIDGE_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"LEADERBOARD_BRIDGE_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"LEADERBOARD_BRIDGE_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"LEADERBOARD_BRIDGE_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"LEADERBOARD_BRIDGE_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"LEADERBOARD_BRIDGE_SHUTDOWN_TIMEOUT"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"LEADERBOARD_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"LEADERBOARD_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" env:"LEADERBOARD_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" yaml:"burst_size" env:"LEADERBOARD_SECURITY_RATE_LIMIT_BURST"`
}

// WebhookConfig lists endpoints that receive SDK events
type WebhookConfig struct {
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty" env:"LEADERBOARD_WEBHOOK_ENDPOINTS"`
	Events    []string `json:"events,omitempty" yaml:"events,omitempty" env:"LEADERBOARD_WEBHOOK_EVENTS"`
	Secret    string   `json:"secret,omitempty" yaml:"secret,omitempty" env:"LEADERBOARD_WEBHOOK_SECRET"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg, err := baseConfig()
	if err != nil {
		return nil, err
	}

	// Load from environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml":
	default:
		return errors.New("config file must have .json, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Environment
// variables override file values.
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	// Open the file safely after validation
	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := baseConfig()
	if err != nil {
		return nil, err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// baseConfig starts from the profile named by LEADERBOARD_PROFILE, if any.
func baseConfig() (*Config, error) {
	if name := os.Getenv("LEADERBOARD_PROFILE"); name != "" && name != "default" {
		return LoadProfile(name)
	}
	return DefaultConfig(), nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Client: ClientConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   10 * time.Second,
			QueueSize: 64,
			Routes:    sdk.DefaultRoutes(),
		},
		Auth: AuthConfig{
			SaveMode:   "memory",
			RetryDelay: 5 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/leaderboard-identity.json",
			},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Format:  "json",
			Output:  "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
		Bridge: BridgeConfig{
			Address:           "127.0.0.1:8787",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	// Validate environment
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Client.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("client config: %v", err))
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("auth config: %v", err))
	}

	// Validate storage config
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	// Validate logging config
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	// Validate metrics config
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}

	if err := c.Bridge.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("bridge config: %v", err))
	}

	// Validate security config
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Webhook.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhook config: %v", err))
	}

	if c.Auth.SaveMode == "persistent" && c.Storage.Adapter == "memory" {
		errs = append(errs, "auth.save_mode persistent needs a durable storage adapter")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

const redacted = "[REDACTED]"

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = redacted
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if cfg.Client.APIKey != "" {
		cfg.Client.APIKey = redacted
	}
	if cfg.Auth.Credentials != "" {
		cfg.Auth.Credentials = redacted
	}
	if cfg.Webhook.Secret != "" {
		cfg.Webhook.Secret = redacted
	}
	if len(cfg.Security.APIKeys) > 0 {
		keys := make([]string, len(cfg.Security.APIKeys))
		for i := range keys {
			keys[i] = redacted
		}
		cfg.Security.APIKeys = keys
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
