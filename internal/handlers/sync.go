package handlers

import (
	"context"

	"github.com/ophirh/smugmug-sync/internal/reconcile"
)

// handleAlbumSync implements spec.md §4.6's ALBUM_SYNC: an existing album
// present on both sides whose smart comparison found it divergent. The
// transfer itself is identical to ALBUM_ADD's, operating on an already
// populated pair of albums instead of a freshly created one.
func (d *Deps) handleAlbumSync(ctx context.Context, payload any, dryRun bool) error {
	p := payload.(reconcile.AlbumSyncPayload)

	return d.syncAlbumImages(ctx, p.Disk, p.Online, p.Policy, dryRun)
}
