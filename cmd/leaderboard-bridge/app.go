package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leaderboardkit/api/httpapi"
	"leaderboardkit/config"
	"leaderboardkit/creator"
	"leaderboardkit/realtime"
)

// Flags are the command-line inputs the providers need.
type Flags struct {
	ConfigPath string
	SecretsDir string
	Address    string
}

// App aggregates the assembled bridge components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Creator *creator.Creator
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context, flags Flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigPath != "" {
		cfg, err = config.LoadFromFile(flags.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	var secrets config.SecretStore = config.NewEnvironmentSecretStore()
	if flags.SecretsDir != "" {
		secrets = config.NewFileSecretStore(flags.SecretsDir)
	}
	if err := config.ResolveSecrets(ctx, cfg, secrets); err != nil {
		return nil, err
	}

	if flags.Address != "" {
		cfg.Bridge.Address = flags.Address
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideCreator(cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, reg *prometheus.Registry) (*creator.Creator, func(), error) {
	opts := []creator.Option{
		creator.WithRealtime(hub),
		creator.WithLogger(logger),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, creator.WithMetrics(reg))
	}
	c, err := creator.FromConfig(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := c.Close(); err != nil {
			logger.Error("error closing sdk", "error", err)
		}
	}
	return c, cleanup, nil
}

func provideHandler(cfg *config.Config, c *creator.Creator, hub *realtime.Hub, reg *prometheus.Registry) http.Handler {
	deps := httpapi.Deps{
		Session: c.Session,
		Prober:  c.Client,
		Hub:     hub,
		Stats:   c.Stats,
		DAU:     c.DAU,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	return httpapi.NewMux(deps, httpapi.Options{
		PathPrefix:       cfg.Bridge.PathPrefix,
		AllowCORSOrigin:  cfg.Bridge.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		HealthTimeout:    cfg.Client.Timeout,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Bridge.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Bridge.ReadHeaderTimeout,
		ReadTimeout:       cfg.Bridge.ReadTimeout,
		WriteTimeout:      cfg.Bridge.WriteTimeout,
		IdleTimeout:       cfg.Bridge.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}
	if !cfg.Logging.Enabled {
		out = io.Discard
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}
