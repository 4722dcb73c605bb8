// Command leaderboard-bridge runs the SDK as a local process and exposes it
// over HTTP and WebSocket so a front end can hand over credentials.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "leaderboard-bridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var flags Flags
	var envFile, profile string

	flagSet := pflag.NewFlagSet("leaderboard-bridge", pflag.ContinueOnError)
	flagSet.StringVarP(&flags.ConfigPath, "config", "c", "", "path to a .json, .yaml or .yml config file")
	flagSet.StringVar(&profile, "profile", "", "configuration profile (development, testing, staging, production)")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.StringVar(&flags.SecretsDir, "secrets-dir", "", "directory of secret files used to resolve secret: references")
	flagSet.StringVar(&flags.Address, "addr", "", "listen address, overrides bridge.address")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if profile != "" {
		if err := os.Setenv("LEADERBOARD_PROFILE", profile); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx, flags)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer cleanup()

	cfg := app.Config
	slog.Info("starting leaderboard bridge",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Bridge.Address,
		"service", cfg.Client.BaseURL,
		"save_mode", cfg.Auth.SaveMode,
		"storage_adapter", cfg.Storage.Adapter)

	app.Creator.Start(ctx, func(deviceID string) {
		slog.Info("device id ready", "device_id", deviceID)
	})

	srv := app.Server
	errCh := make(chan error, 1)
	go func() {
		slog.Info("bridge listening", "address", cfg.Bridge.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down bridge", "timeout", cfg.Bridge.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Bridge.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}

	slog.Info("bridge stopped")
	return nil
}
