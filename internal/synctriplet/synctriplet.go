// Package synctriplet implements the per-album sync-state cache described
// in spec.md §4.3: a small JSON file (sync_time, online_time, disk_time)
// persisted inside the album directory that lets the reconciliation
// engine decide quickly whether an album needs deep comparison.
package synctriplet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ophirh/smugmug-sync/internal/photomodel"
)

// FileName is the name of the sync-state file inside an album directory.
const FileName = "smugmug_sync.json"

// Delta is the tolerance, in seconds, used by AlreadySynced when comparing
// timestamps (spec.md §4.3). A difference of exactly Delta is still
// "synced"; one second more is not.
const Delta = 360

// filePerms restricts the triplet file to owner read/write, matching the
// teacher's token-file convention (internal/tokenfile.FilePerms).
const filePerms = 0o600

// onDisk is the JSON shape persisted to FileName.
type onDisk struct {
	SyncTime   float64 `json:"sync_time"`
	OnlineTime float64 `json:"online_time"`
	DiskTime   float64 `json:"disk_time"`
}

// Load reads the sync triplet for the album at albumDir. A missing or
// malformed file is treated as "never synced" — malformed files are
// silently deleted per spec.md §4.1's failure semantics ("Malformed sync
// triplet JSON ⇒ silently delete the file and treat as never synced").
func Load(albumDir string, logger *slog.Logger) photomodel.SyncTriplet {
	logger = nonNilLogger(logger)
	path := filepath.Join(albumDir, FileName)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return photomodel.SyncTriplet{}
	}

	if err != nil {
		logger.Warn("synctriplet: read failed, treating as never synced",
			slog.String("path", path), slog.String("error", err.Error()))

		return photomodel.SyncTriplet{}
	}

	var d onDisk
	if err := json.Unmarshal(data, &d); err != nil {
		logger.Warn("synctriplet: malformed JSON, resetting",
			slog.String("path", path), slog.String("error", err.Error()))

		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Warn("synctriplet: failed to remove malformed file",
				slog.String("path", path), slog.String("error", rmErr.Error()))
		}

		return photomodel.SyncTriplet{}
	}

	return photomodel.SyncTriplet{
		SyncTime:   d.SyncTime,
		OnlineTime: d.OnlineTime,
		DiskTime:   d.DiskTime,
		Valid:      true,
	}
}

// RememberSync implements spec.md §4.3's remember_sync operation. A nil
// onlineTime deletes the file (reset state). Otherwise it records
// sync_time = now, online_time = onlineTime, disk_time = mtime(albumDir),
// writing atomically via temp-file-then-rename so a crash mid-write
// leaves either the old or the new content (grounded on the teacher's
// internal/tokenfile.Save pattern).
func RememberSync(albumDir string, onlineTime *float64, logger *slog.Logger) error {
	logger = nonNilLogger(logger)
	path := filepath.Join(albumDir, FileName)

	if onlineTime == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("synctriplet: removing %s: %w", path, err)
		}

		return nil
	}

	info, err := os.Stat(albumDir)
	if err != nil {
		return fmt.Errorf("synctriplet: stat album dir %s: %w", albumDir, err)
	}

	d := onDisk{
		SyncTime:   float64(time.Now().Unix()),
		OnlineTime: *onlineTime,
		DiskTime:   float64(info.ModTime().Unix()),
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("synctriplet: encoding: %w", err)
	}

	return writeAtomic(path, data, logger)
}

func writeAtomic(path string, data []byte, logger *slog.Logger) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".smugmug_sync-*.tmp")
	if err != nil {
		return fmt.Errorf("synctriplet: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()
	success := false

	defer func() {
		if !success {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				logger.Warn("synctriplet: cleanup of temp file failed",
					slog.String("path", tmpPath), slog.String("error", rmErr.Error()))
			}
		}
	}()

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("synctriplet: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("synctriplet: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("synctriplet: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("synctriplet: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("synctriplet: renaming: %w", err)
	}

	success = true

	return nil
}

// AlreadySynced implements spec.md §4.3's albums_already_synced algorithm.
// diskTriplet is the triplet loaded for the disk-side album; onlineLastUpdated
// is the remote album's current LastUpdated; albumDir is the disk album's
// directory (its mtime is re-read live, not trusted from the triplet).
func AlreadySynced(diskTriplet photomodel.SyncTriplet, onlineLastUpdated float64, albumDir string, force bool) bool {
	if force {
		return false
	}

	if !diskTriplet.Valid {
		return false
	}

	if math.Abs(diskTriplet.OnlineTime-onlineLastUpdated) > Delta {
		return false
	}

	info, err := os.Stat(albumDir)
	if err != nil {
		return false
	}

	if math.Abs(diskTriplet.DiskTime-float64(info.ModTime().Unix())) > Delta {
		return false
	}

	return true
}

func nonNilLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return logger
}
