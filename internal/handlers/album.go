package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/reconcile"
)

// handleAlbumAdd implements spec.md §4.6's ALBUM_ADD: create the album
// shell on the target, then hand off to the same image-transfer routine
// ALBUM_SYNC uses (§4.6a/§4.6b) to populate it — a brand-new album is just
// the degenerate case where every image on the copy-from side is missing
// on the other. Unlike FOLDER_ADD, this fans out no further dispatcher
// events: an album is a leaf.
func (d *Deps) handleAlbumAdd(ctx context.Context, payload any, dryRun bool) error {
	p := payload.(reconcile.AlbumPayload)

	album, err := d.materializeAlbum(ctx, p, dryRun)
	if err != nil {
		return err
	}

	p.Target.AddAlbum(album)

	diskAlbum, onlineAlbum := diskAndOnline(p.Source, album, p.Policy.Action)

	return d.syncAlbumImages(ctx, diskAlbum, onlineAlbum, p.Policy, dryRun)
}

// materializeAlbum creates the album shell for p.Source under p.Target.
// In dry_run it fabricates an in-memory-only shell so syncAlbumImages can
// still compute and log its intended transfer without any mutating call.
func (d *Deps) materializeAlbum(ctx context.Context, p reconcile.AlbumPayload, dryRun bool) (*photomodel.Album, error) {
	relPath := p.Target.ChildRelativePath(p.Source.Name)

	if dryRun {
		d.logger().Info("dry-run: would create album",
			slog.String("path", relPath), slog.String("action", actionLabel(p.Policy.Action)))

		album := &photomodel.Album{Name: p.Source.Name, RelativePath: relPath}

		if p.Policy.Action == reconcile.ActionUpload {
			album.Online = &photomodel.AlbumOnlineInfo{URI: p.Target.Online.URI + "/" + p.Source.Name}
		} else {
			album.Disk = &photomodel.AlbumDiskInfo{Path: filepath.Join(p.Target.Disk.Path, p.Source.Name)}
		}

		album.SetImages(nil)

		return album, nil
	}

	album := &photomodel.Album{Name: p.Source.Name, RelativePath: relPath}

	switch p.Policy.Action {
	case reconcile.ActionUpload:
		created, err := d.Client.CreateAlbum(ctx, p.Target.Online.NodeURI, p.Source.Name)
		if err != nil {
			return nil, fmt.Errorf("handlers: creating remote album %s: %w", relPath, err)
		}

		album.Online = &photomodel.AlbumOnlineInfo{
			URI:       created.URI,
			ImagesURI: created.Uris.AlbumImages.URI,
		}
		album.SetImages(nil)
	case reconcile.ActionDownload:
		diskPath := filepath.Join(p.Target.Disk.Path, p.Source.Name)
		if err := os.MkdirAll(diskPath, dirPermissions); err != nil {
			return nil, fmt.Errorf("handlers: creating local album directory %s: %w", diskPath, err)
		}

		album.Disk = &photomodel.AlbumDiskInfo{Path: diskPath}
		album.SetImages(nil)
	}

	return album, nil
}

// handleAlbumDelete implements spec.md §4.6's ALBUM_DELETE.
func (d *Deps) handleAlbumDelete(ctx context.Context, payload any, dryRun bool) error {
	p := payload.(reconcile.AlbumPayload)
	album := p.Source

	if dryRun {
		d.logger().Info("dry-run: would delete album", slog.String("path", album.RelativePath))
		return nil
	}

	if album.OnDisk() {
		if err := os.RemoveAll(album.Disk.Path); err != nil {
			return fmt.Errorf("handlers: deleting local album %s: %w", album.Disk.Path, err)
		}
	} else if album.OnLine() {
		if err := d.Client.DeleteEntity(ctx, album.Online.URI); err != nil {
			return fmt.Errorf("handlers: deleting remote album %s: %w", album.RelativePath, err)
		}
	}

	p.Target.RemoveAlbum(album.Name)

	return nil
}

// diskAndOnline orders (source, target) into (disk-side, online-side)
// regardless of sync direction, mirroring internal/reconcile's own helper
// of the same name (the two packages never import each other for this).
func diskAndOnline(source, target *photomodel.Album, action reconcile.Action) (disk, online *photomodel.Album) {
	if action == reconcile.ActionUpload {
		return source, target
	}

	return target, source
}
