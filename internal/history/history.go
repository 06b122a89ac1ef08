// Package history is a purely additive audit trail of past sync runs,
// described in SPEC_FULL.md's Run History module. It is never consulted by
// the reconciliation engine; it exists only so the CLI's status subcommand
// has something to report, and so the sqlite/goose dependencies pulled in
// for that purpose have a genuine home.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one completed (or failed) sync run, as recorded by the sync
// command.
type Run struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	Preset        string
	DryRun        bool
	FolderAdds    int
	AlbumAdds     int
	FolderDeletes int
	AlbumDeletes  int
	AlbumSyncs    int
	Succeeded     bool
	FirstError    string
}

// Duration reports how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is the sole writer to the run-history database, mirroring the
// teacher's BaselineManager sole-writer pattern.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (if needed) and migrates the SQLite database at dbPath.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one completed run.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(started_at, finished_at, preset, dry_run, folder_adds, album_adds,
			 folder_deletes, album_deletes, album_syncs, succeeded, first_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.Unix(), r.FinishedAt.Unix(), r.Preset, r.DryRun,
		r.FolderAdds, r.AlbumAdds, r.FolderDeletes, r.AlbumDeletes, r.AlbumSyncs,
		r.Succeeded, nullIfEmpty(r.FirstError),
	)
	if err != nil {
		return fmt.Errorf("history: recording run: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, preset, dry_run, folder_adds, album_adds,
		       folder_deletes, album_deletes, album_syncs, succeeded, first_error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	defer rows.Close()

	var out []Run

	for rows.Next() {
		var (
			r          Run
			started    int64
			finished   int64
			firstError sql.NullString
		)

		if err := rows.Scan(&r.ID, &started, &finished, &r.Preset, &r.DryRun,
			&r.FolderAdds, &r.AlbumAdds, &r.FolderDeletes, &r.AlbumDeletes, &r.AlbumSyncs,
			&r.Succeeded, &firstError); err != nil {
			return nil, fmt.Errorf("history: scanning run row: %w", err)
		}

		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		r.FirstError = firstError.String

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating run rows: %w", err)
	}

	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}

// runMigrations applies every pending schema migration embedded under
// migrations/, using goose's Provider API (grounded on the teacher's
// internal/sync/migrations.go).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("history: applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}
