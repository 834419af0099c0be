package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/finledger/syncengine/internal/config"
	"github.com/finledger/syncengine/internal/conflict"
	"github.com/finledger/syncengine/internal/engine"
	"github.com/finledger/syncengine/internal/reachability"
	"github.com/finledger/syncengine/internal/remote"
	"github.com/finledger/syncengine/internal/storage"
	"github.com/finledger/syncengine/internal/storage/boltdb"
	"github.com/finledger/syncengine/internal/storage/sqlite"
)

var (
	cfgPath   string
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "Synchronize local financial records with the remote backend",
	Long: `syncd keeps a local record store (calculations, projects) reconciled
with the remote backend. It runs periodic sync cycles, resolves conflicting
edits, buffers writes while offline and retries transient failures.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "session token (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("syncd\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Git Commit: %s\n", GitCommit)
	},
}

// loadConfig applies flag overrides on top of the loaded file/env config
// and prompts for a token when none is configured and stdin is a terminal.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if authToken != "" {
		cfg.Server.Token = authToken
	}

	if cfg.Server.Token == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Session token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		cfg.Server.Token = strings.TrimSpace(string(raw))
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(rotated, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlite.New(ctx, cfg.Path)
	default:
		return boltdb.New(ctx, cfg.Path)
	}
}

// buildCoordinator wires the full sync stack from configuration. The caller
// owns the returned coordinator, store and monitor and must stop them.
func buildCoordinator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Coordinator, storage.Store, *reachability.ProbeMonitor, error) {
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open local store: %w", err)
	}

	backend := remote.NewClient(cfg.Server.URL, cfg.Server.Token)

	monitor := reachability.NewProbeMonitor(cfg.Server.URL, reachability.DefaultProbeInterval, logger)

	strategy, err := conflict.ParseStrategy(cfg.Sync.Strategy)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	coord := engine.New(store, backend, monitor, engine.Config{
		Interval:         cfg.Sync.Interval,
		TieTolerance:     cfg.Sync.TieTolerance,
		DefaultStrategy:  strategy,
		RetryInterval:    cfg.Retry.Interval,
		RetryMaxAttempts: cfg.Retry.MaxAttempts,
		OfflineCapacity:  cfg.Offline.Capacity,
	}, logger)

	return coord, store, monitor, nil
}
