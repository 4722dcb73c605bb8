// Command leaderboard-cli runs one leaderboard operation and prints the
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"leaderboardkit/bootstrap"
	"leaderboardkit/config"
	"leaderboardkit/creator"
	"leaderboardkit/engine"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "leaderboard-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		envFile     string
		baseURL     string
		credentials string
		saveMode    string
		timeout     time.Duration
		verbose     bool
		q           queryFlags
	)

	flagSet := pflag.NewFlagSet("leaderboard-cli", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a .json, .yaml or .yml config file")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.StringVar(&baseURL, "url", "", "leaderboard service URL, overrides client.base_url")
	flagSet.StringVar(&credentials, "credentials", "", `identity as "username,mode,token"`)
	flagSet.StringVar(&saveMode, "save-mode", "", "device id handling: persistent, memory or unhandled")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline including device id retries")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	flagSet.StringVar(&q.order, "order", "", "list order: default, asc or desc")
	flagSet.IntVar(&q.skip, "skip", 0, "entries to skip")
	flagSet.IntVar(&q.take, "take", 0, "entries to return")
	flagSet.StringVar(&q.user, "user", "", "only entries matching this username")
	flagSet.StringVar(&q.period, "period", "", "time window: all, today, week, month or year")
	flagSet.StringVar(&q.extra, "extra", "", "extra data stored with an uploaded entry")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if len(args) == 0 {
		printUsage(stderr, flagSet)
		return errors.New("missing command")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stderr, flagSet)
		return fmt.Errorf("unknown command %q", args[0])
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}
	if credentials != "" {
		cfg.Auth.Credentials = credentials
	}
	if saveMode != "" {
		cfg.Auth.SaveMode = saveMode
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	loop := engine.NewLoop()
	c, err := creator.FromConfig(cfg,
		creator.WithLoop(loop),
		creator.WithLogger(logger),
		creator.WithLoggingEnabled(verbose),
		creator.WithDispatchMode(engine.DispatchSync),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if cmd.needsDevice && c.Authorizer.Mode() != bootstrap.SaveUnhandled {
		ready := false
		c.Start(ctx, func(string) { ready = true })
		for !ready {
			if _, err := loop.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for device id: %w", err)
			}
		}
	}

	var (
		finished bool
		result   any
		opErr    error
	)
	finish := func(v any, err error) {
		loop.Post(func() {
			finished, result, opErr = true, v, err
		})
	}
	if err := cmd.run(ctx, c, q, args[1:], finish); err != nil {
		if errors.Is(err, errUsage) {
			return fmt.Errorf("usage: leaderboard-cli [flags] %s", cmd.usage)
		}
		return err
	}
	for !finished {
		if _, err := loop.Wait(ctx); err != nil {
			return err
		}
	}
	if opErr != nil {
		return opErr
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := config.ResolveSecrets(ctx, cfg, config.NewEnvironmentSecretStore()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: leaderboard-cli [flags] COMMAND [ARGS]")
	fmt.Fprintln(w, "\nCommands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(w, "\nCommands without KEY act on the leaderboard named after the --credentials username.")
	fmt.Fprintln(w, "\nFlags:")
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
