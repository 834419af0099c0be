package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finledger/syncengine/internal/conflict"
	"github.com/finledger/syncengine/internal/engine"
	"github.com/finledger/syncengine/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle and exit",
	Long: `Run a single full sync cycle against the backend. Conflicts are
resolved with the configured strategy; deferred conflicts are listed for a
follow-up run with an explicit --strategy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if s, _ := cmd.Flags().GetString("strategy"); s != "" {
			if _, err := conflict.ParseStrategy(s); err != nil {
				return err
			}
			cfg.Sync.Strategy = s
		}
		logger := newLogger(cfg.Log)

		ctx := cmd.Context()
		coord, store, _, err := buildCoordinator(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			coord.Close()
			if err := store.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()

		coord.Subscribe(engine.Observer{
			OnProgress: func(p float64) {
				fmt.Fprintf(os.Stderr, "\rsyncing... %3.0f%%", p*100)
			},
		})

		if err := coord.RunCycle(ctx); err != nil {
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		printCycleOutcome(coord)
		return nil
	},
}

func init() {
	syncCmd.Flags().String("strategy", "", "conflict strategy for this run: use_local, use_remote, merge, defer")
}

func printCycleOutcome(coord *engine.Coordinator) {
	pending := coord.PendingConflicts()
	if len(pending) > 0 {
		fmt.Printf("%d conflict(s) deferred:\n", len(pending))
		for _, c := range pending {
			printConflict(c)
		}
		fmt.Println("\nRe-run with --strategy use_local|use_remote|merge to resolve.")
	}

	if n := len(coord.PendingRetries()); n > 0 {
		fmt.Printf("%d write(s) pending retry\n", n)
	}
	if n := len(coord.PendingOffline()); n > 0 {
		fmt.Printf("%d write(s) buffered offline\n", n)
	}

	status := coord.Status()
	fmt.Printf("sync %s", status.State)
	if !status.LastSuccess.IsZero() {
		fmt.Printf(" at %s", status.LastSuccess.Format("15:04:05"))
	}
	fmt.Println()
}

func printConflict(c models.Conflict) {
	fmt.Printf("  %s (%s, %s)", c.ID(), c.Local.Kind, c.Kind)
	if len(c.Fields) > 0 {
		fmt.Printf(" fields: %v", c.Fields)
	}
	fmt.Printf("\n    local:  modified %s  payload %s\n", c.Local.ModifiedAt.Format("2006-01-02 15:04:05"), c.Local.Checksum())
	fmt.Printf("    remote: modified %s  payload %s\n", c.Remote.ModifiedAt.Format("2006-01-02 15:04:05"), c.Remote.Checksum())
}
