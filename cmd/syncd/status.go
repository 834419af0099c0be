package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finledger/syncengine/internal/remote"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend reachability and local store state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Log)

		ctx := cmd.Context()

		fmt.Printf("server:  %s\n", cfg.Server.URL)
		fmt.Printf("store:   %s (%s)\n", cfg.Store.Path, cfg.Store.Backend)

		backend := remote.NewClient(cfg.Server.URL, cfg.Server.Token)
		if err := backend.Ping(ctx); err != nil {
			fmt.Printf("backend: unreachable (%v)\n", err)
		} else {
			fmt.Println("backend: ok")
		}

		store, err := openStore(ctx, cfg.Store)
		if err != nil {
			fmt.Printf("records: store unavailable (%v)\n", err)
			return nil
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()

		snapshot, err := store.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("read local store: %w", err)
		}

		active, tombstones := 0, 0
		for _, rec := range snapshot {
			if rec.Deleted {
				tombstones++
			} else {
				active++
			}
		}
		fmt.Printf("records: %d active, %d deleted\n", active, tombstones)
		return nil
	},
}
