package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ophirh/smugmug-sync/internal/config"
	"github.com/ophirh/smugmug-sync/internal/history"
)

// statusLimit caps how many past runs `status` prints, the teacher's
// status.go "last N runs" idiom.
const statusLimit = 10

// newStatusCmd builds the `smugmug-sync status` subcommand: it reads the
// run-history database recorded by prior `--sync` invocations and prints a
// table of recent runs (SPEC_FULL.md's Run History module).
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagBaseDir == "" {
				return fmt.Errorf("status: --base_dir is required")
			}

			ctx := cmd.Context()
			logger := buildLogger(config.DefaultConfig())

			store, err := history.Open(ctx, filepath.Join(flagBaseDir, historyFileName), logger)
			if err != nil {
				return fmt.Errorf("status: opening run history: %w", err)
			}
			defer store.Close()

			runs, err := store.Recent(ctx, statusLimit)
			if err != nil {
				return fmt.Errorf("status: listing runs: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No recorded runs.")
				return nil
			}

			fmt.Printf("%-20s %-22s %-8s %-6s %s\n", "STARTED", "PRESET", "DRY_RUN", "OK", "EVENTS (F+/A+/F-/A-/S)")

			for _, r := range runs {
				events := fmt.Sprintf("%d/%d/%d/%d/%d", r.FolderAdds, r.AlbumAdds, r.FolderDeletes, r.AlbumDeletes, r.AlbumSyncs)

				fmt.Printf("%-20s %-22s %-8t %-6t %s\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Preset, r.DryRun, r.Succeeded, events)

				if !r.Succeeded && r.FirstError != "" {
					fmt.Printf("    error: %s\n", r.FirstError)
				}
			}

			return nil
		},
	}
}
