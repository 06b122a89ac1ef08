// Package handlers implements the five reconciliation event handlers from
// spec.md §4.6: the mutating layer that internal/reconcile's pure decision
// events drive. Each handler receives a typed payload (defined in
// internal/reconcile) and a dry_run flag; in dry_run mode a handler must
// compute and log its intended effect without ever calling a mutating
// client or filesystem primitive.
package handlers

import (
	"log/slog"

	"github.com/ophirh/smugmug-sync/internal/dispatcher"
	"github.com/ophirh/smugmug-sync/internal/remotescan"
	"github.com/ophirh/smugmug-sync/internal/smugmug"
)

// Deps bundles the collaborators every handler needs.
type Deps struct {
	Client *smugmug.Client
	Remote *remotescan.Scanner
	Logger *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}

	return d.Logger
}

// RegisterAll subscribes every handler in spec.md §4.6's canonical set on d.
func RegisterAll(d *dispatcher.Dispatcher, deps *Deps) {
	d.Subscribe(dispatcher.KindFolderAdd, deps.handleFolderAdd(d))
	d.Subscribe(dispatcher.KindAlbumAdd, deps.handleAlbumAdd)
	d.Subscribe(dispatcher.KindFolderDelete, deps.handleFolderDelete)
	d.Subscribe(dispatcher.KindAlbumDelete, deps.handleAlbumDelete)
	d.Subscribe(dispatcher.KindAlbumSync, deps.handleAlbumSync)
}
