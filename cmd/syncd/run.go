package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon",
	Long: `Run syncd in the foreground: periodic sync cycles, connectivity
probing, offline buffering and retry replay, until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if f, _ := cmd.Flags().GetString("log-file"); f != "" {
			cfg.Log.File = f
		}
		logger := newLogger(cfg.Log)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		coord, store, monitor, err := buildCoordinator(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()

		monitor.Start(ctx)
		defer monitor.Stop()

		if err := coord.Enable(ctx); err != nil {
			return fmt.Errorf("start sync: %w", err)
		}
		defer coord.Close()

		logger.Info("syncd running",
			"server", cfg.Server.URL,
			"store", cfg.Store.Backend,
			"interval", cfg.Sync.Interval)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig

		logger.Info("shutting down", "signal", s.String())
		return nil
	},
}

func init() {
	runCmd.Flags().String("log-file", "", "log to a rotated file instead of stderr")
}
