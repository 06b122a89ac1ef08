package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ophirh/smugmug-sync/internal/config"
	"github.com/ophirh/smugmug-sync/internal/dispatcher"
	"github.com/ophirh/smugmug-sync/internal/handlers"
	"github.com/ophirh/smugmug-sync/internal/history"
	"github.com/ophirh/smugmug-sync/internal/localscan"
	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/reconcile"
	"github.com/ophirh/smugmug-sync/internal/remotescan"
	"github.com/ophirh/smugmug-sync/internal/smugmug"
)

// historyFileName is the run-history database's name, kept alongside the
// library it describes (SPEC_FULL.md's Run History module).
const historyFileName = ".smugmug-sync-history.db"

// runSync is newRootCmd's RunE: it resolves config, builds the engine, runs
// one reconciliation cycle, records it, and prints the teacher-style
// summary table (spec.md §7).
func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadResolvedConfig()
	if err != nil {
		exitOnError(err)
		return nil
	}

	logger := buildLogger(cfg)

	store, err := history.Open(ctx, filepath.Join(cfg.BaseDir, historyFileName), logger)
	if err != nil {
		exitOnError(fmt.Errorf("opening run history: %w", err))
		return nil
	}
	defer store.Close()

	started := time.Now()
	run := history.Run{StartedAt: started, Preset: string(cfg.SyncPreset), DryRun: cfg.DryRun}

	summary, runErr := doSync(ctx, cfg, logger)

	run.FinishedAt = time.Now()
	run.Succeeded = runErr == nil

	if runErr != nil {
		run.FirstError = runErr.Error()
	}

	if summary != nil {
		run.FolderAdds = summary.SubmittedByKind[dispatcher.KindFolderAdd]
		run.AlbumAdds = summary.SubmittedByKind[dispatcher.KindAlbumAdd]
		run.FolderDeletes = summary.SubmittedByKind[dispatcher.KindFolderDelete]
		run.AlbumDeletes = summary.SubmittedByKind[dispatcher.KindAlbumDelete]
		run.AlbumSyncs = summary.SubmittedByKind[dispatcher.KindAlbumSync]
	}

	if err := store.Record(ctx, run); err != nil {
		logger.Warn("failed to record run history", slog.String("error", err.Error()))
	}

	if runErr != nil {
		exitOnError(runErr)
		return nil
	}

	printSummary(cfg, *summary, run.Duration())

	return nil
}

// doSync builds every core collaborator and runs one reconciliation cycle,
// mirroring the teacher's runSync: scan both sides, build the engine,
// register handlers, run, then join.
func doSync(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dispatcher.Summary, error) {
	direction := config.DirectionForPreset(cfg.SyncPreset)
	if !direction.Actionable {
		return nil, fmt.Errorf("sync: preset %q is not an actionable sync (optimizer presets are out of scope)", cfg.SyncPreset)
	}

	client := smugmug.NewClient(smugmug.Credentials{
		ConsumerKey:       cfg.ConsumerKey,
		ConsumerSecret:    cfg.ConsumerSecret,
		AccessToken:       cfg.AccessToken,
		AccessTokenSecret: cfg.AccessTokenSecret,
	}, logger)

	rootURI, err := client.RootFolderURI(ctx, cfg.Account)
	if err != nil {
		return nil, fmt.Errorf("sync: resolving root folder for %s: %w", cfg.Account, err)
	}

	// The test folder is always excluded from an ordinary scan to prevent
	// self-recursion (spec.md §4.2), regardless of whether this run is
	// itself routing uploads into it.
	remote := remotescan.New(client, cfg.TestFolderURI, logger)

	logger.Info("scanning local library", slog.String("base_dir", cfg.BaseDir))

	diskRoot, err := localscan.New(logger).Scan(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("sync: scanning local library: %w", err)
	}

	// --test_upload redirects an upload run's remote target at the
	// configured test folder instead of the account root (spec.md §6.2),
	// so uploads land there for inspection instead of the real library.
	remoteScanRoot := rootURI
	if cfg.TestUpload && direction.Upload && cfg.TestFolderURI != "" {
		remoteScanRoot = cfg.TestFolderURI
	}

	logger.Info("scanning remote library", slog.String("account", cfg.Account), slog.String("root", remoteScanRoot))

	onlineRoot, err := remote.Scan(ctx, remoteScanRoot)
	if err != nil {
		return nil, fmt.Errorf("sync: scanning remote library: %w", err)
	}

	action := reconcile.ActionDownload
	if direction.Upload {
		action = reconcile.ActionUpload
	}

	policy := reconcile.Policy{
		Action:       action,
		DeleteOnDisk: direction.DeleteOnDisk,
		DeleteOnline: direction.DeleteOnline,
		DryRun:       cfg.DryRun,
		ForceRefresh: cfg.ForceRefresh,
	}

	d := dispatcher.New(logger)

	handlers.RegisterAll(d, &handlers.Deps{
		Client: client,
		Remote: remote,
		Logger: logger,
	})

	engine := reconcile.New(d, policy, remote.LoadImages)

	var source, target *photomodel.RootFolder

	if action == reconcile.ActionUpload {
		source, target = diskRoot, onlineRoot
	} else {
		source, target = onlineRoot, diskRoot
	}

	logger.Info("reconciling", slog.String("preset", string(cfg.SyncPreset)), slog.Bool("dry_run", cfg.DryRun))

	engine.Run(ctx, source, target)

	if err := d.Join(ctx); err != nil {
		summary := d.Summary()
		return &summary, fmt.Errorf("sync: one or more handlers failed: %w", err)
	}

	summary := d.Summary()

	return &summary, nil
}

// printSummary renders the per-kind event counts the teacher's status.go
// prints after a run, colorizing only when stdout is a real terminal
// (mattn/go-isatty, matching the teacher's idiom).
func printSummary(cfg *config.Config, summary dispatcher.Summary, duration time.Duration) {
	colorize := isatty.IsTerminal(os.Stdout.Fd())

	bold := func(s string) string {
		if !colorize {
			return s
		}

		return "\033[1m" + s + "\033[0m"
	}

	fmt.Println(bold(fmt.Sprintf("Sync complete (%s) in %s", cfg.SyncPreset, duration.Round(time.Millisecond))))
	fmt.Printf("  folders added:   %d\n", summary.SubmittedByKind[dispatcher.KindFolderAdd])
	fmt.Printf("  albums added:    %d\n", summary.SubmittedByKind[dispatcher.KindAlbumAdd])
	fmt.Printf("  folders deleted: %d\n", summary.SubmittedByKind[dispatcher.KindFolderDelete])
	fmt.Printf("  albums deleted:  %d\n", summary.SubmittedByKind[dispatcher.KindAlbumDelete])
	fmt.Printf("  albums synced:   %d\n", summary.SubmittedByKind[dispatcher.KindAlbumSync])
	fmt.Printf("  total events:    %s\n", humanize.Comma(int64(summary.TotalProcessed)))
}
