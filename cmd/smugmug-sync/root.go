// Command smugmug-sync reconciles a local photo/video library against a
// SmugMug account, per spec.md. It is the thin CLI shell around the three
// core subsystems (internal/localscan + internal/remotescan,
// internal/reconcile, internal/dispatcher + internal/handlers); built the
// way the teacher's root.go/sync.go build newSyncCmd (RunE resolves
// config, then builds and runs the engine; a summary prints on success,
// exitOnError on failure).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ophirh/smugmug-sync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Persistent flags bound in newRootCmd, matching spec.md §6.2's CLI surface.
var (
	flagSyncPreset     string
	flagBaseDir        string
	flagAccount        string
	flagConsumerKey    string
	flagConsumerSecret string
	flagAccessToken    string
	flagAccessSecret   string
	flagMacPhotosLib   string
	flagForceRefresh   bool
	flagDryRun         bool
	flagTestUpload     bool
	flagLogLevel       string
	flagConfPath       string
	flagMyConfPath     string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "smugmug-sync",
		Short:         "Synchronize a local photo library with SmugMug",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagSyncPreset, "sync", "", "sync preset (required): one of "+presetList())
	cmd.PersistentFlags().StringVar(&flagBaseDir, "base_dir", "", "local photo library root")
	cmd.PersistentFlags().StringVar(&flagAccount, "account", "", "SmugMug account nickname")
	cmd.PersistentFlags().StringVar(&flagConsumerKey, "consumer_key", "", "OAuth1 consumer key")
	cmd.PersistentFlags().StringVar(&flagConsumerSecret, "consumer_secret", "", "OAuth1 consumer secret")
	cmd.PersistentFlags().StringVar(&flagAccessToken, "access_token", "", "OAuth1 access token")
	cmd.PersistentFlags().StringVar(&flagAccessSecret, "access_token_secret", "", "OAuth1 access token secret")
	cmd.PersistentFlags().StringVar(&flagMacPhotosLib, "mac_photos_library_location", "", "Mac Photos library path (ingestion out of scope)")
	cmd.PersistentFlags().BoolVar(&flagForceRefresh, "force_refresh", false, "skip the sync-triplet quick check for every album")
	cmd.PersistentFlags().BoolVar(&flagDryRun, "dry_run", false, "compute and log intended changes without performing them")
	cmd.PersistentFlags().BoolVar(&flagTestUpload, "test_upload", false, "route uploads into the configured test folder")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log_level", "", "debug, info, warn, or error")
	cmd.PersistentFlags().StringVar(&flagConfPath, "config", "", "path to smugmug-sync.conf (default: alongside the executable)")
	cmd.PersistentFlags().StringVar(&flagMyConfPath, "my_config", "", "path to smugmug-sync.my.conf (default: alongside the executable)")

	cmd.RunE = runSync
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// presetList renders config.ValidPresets for --help text.
func presetList() string {
	out := ""
	for i, p := range config.ValidPresets {
		if i > 0 {
			out += ", "
		}

		out += string(p)
	}

	return out
}

// loadResolvedConfig resolves the four-layer config (spec.md §6.2) from
// the bound persistent flags.
func loadResolvedConfig() (*config.Config, error) {
	cli := config.CLIOverrides{
		SyncPreset:               flagSyncPreset,
		BaseDir:                  flagBaseDir,
		Account:                  flagAccount,
		ConsumerKey:              flagConsumerKey,
		ConsumerSecret:           flagConsumerSecret,
		AccessToken:              flagAccessToken,
		AccessTokenSecret:        flagAccessSecret,
		MacPhotosLibraryLocation: flagMacPhotosLib,
		LogLevel:                 flagLogLevel,
	}

	if flagForceRefresh {
		cli.ForceRefresh = &flagForceRefresh
	}

	if flagDryRun {
		cli.DryRun = &flagDryRun
	}

	if flagTestUpload {
		cli.TestUpload = &flagTestUpload
	}

	return config.Load(flagConfPath, flagMyConfPath, cli)
}

// buildLogger constructs the run's logger per cfg.LogLevel (spec.md's
// ambient logging stack: log/slog, text handler to stderr).
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints err to stderr and exits with status 1. When a sync
// run's handlers failed, err carries every handler error that
// dispatcher.Join aggregated, as plain messages; no stack trace is printed.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
