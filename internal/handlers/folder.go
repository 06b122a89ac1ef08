package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ophirh/smugmug-sync/internal/dispatcher"
	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/reconcile"
)

// dirPermissions is the mode used for newly created album/folder directories.
const dirPermissions = 0o755

// handleFolderAdd implements spec.md §4.6's FOLDER_ADD: create the node on
// the target side, attach it to its parent, then re-publish one ADD event
// per non-empty child album and per sub-folder, so the whole subtree gets
// created with the dispatcher's own bounded concurrency.
func (d *Deps) handleFolderAdd(disp *dispatcher.Dispatcher) dispatcher.Handler {
	return func(ctx context.Context, payload any, dryRun bool) error {
		p := payload.(reconcile.FolderPayload)

		child, err := d.materializeFolder(ctx, p, dryRun)
		if err != nil {
			return err
		}

		p.Target.AddSubFolder(child)

		for _, name := range p.Source.AlbumNames() {
			album, _ := p.Source.Album(name)
			if album.ImageCount == 0 {
				continue
			}

			disp.FireEvent(ctx, dispatcher.KindAlbumAdd, reconcile.AlbumPayload{
				Source: album,
				Target: child,
				Policy: p.Policy,
			}, dryRun)
		}

		for _, name := range p.Source.SubFolderNames() {
			sub, _ := p.Source.SubFolder(name)

			disp.FireEvent(ctx, dispatcher.KindFolderAdd, reconcile.FolderPayload{
				Source: sub,
				Target: child,
				Policy: p.Policy,
			}, dryRun)
		}

		return nil
	}
}

// materializeFolder creates the physical/remote node for p.Source under
// p.Target and returns the new in-memory Folder. In dry_run it returns a
// synthetic node (never touching disk or network) so the event cascade
// below still fires and is counted, per spec.md §4.7's dry-run scenario.
func (d *Deps) materializeFolder(ctx context.Context, p reconcile.FolderPayload, dryRun bool) (*photomodel.Folder, error) {
	relPath := p.Target.ChildRelativePath(p.Source.Name)

	if dryRun {
		d.logger().Info("dry-run: would create folder",
			slog.String("path", relPath), slog.String("action", actionLabel(p.Policy.Action)))

		child := photomodel.NewFolder(p.Source.Name, relPath)

		if p.Policy.Action == reconcile.ActionUpload {
			child.Online = &photomodel.FolderOnlineInfo{URI: p.Target.Online.URI + "/" + p.Source.Name}
		} else {
			child.Disk = &photomodel.FolderDiskInfo{Path: filepath.Join(p.Target.Disk.Path, p.Source.Name)}
		}

		return child, nil
	}

	child := photomodel.NewFolder(p.Source.Name, relPath)

	switch p.Policy.Action {
	case reconcile.ActionUpload:
		created, err := d.Client.CreateFolder(ctx, p.Target.Online.SubFoldersURI, p.Source.Name)
		if err != nil {
			return nil, fmt.Errorf("handlers: creating remote folder %s: %w", relPath, err)
		}

		child.Online = &photomodel.FolderOnlineInfo{
			URI:           created.URI,
			SubFoldersURI: created.Uris.Folders.URI,
			AlbumsURI:     created.Uris.FolderAlbums.URI,
			NodeURI:       created.Uris.Node.URI,
		}
	case reconcile.ActionDownload:
		diskPath := filepath.Join(p.Target.Disk.Path, p.Source.Name)
		if err := os.MkdirAll(diskPath, dirPermissions); err != nil {
			return nil, fmt.Errorf("handlers: creating local folder %s: %w", diskPath, err)
		}

		child.Disk = &photomodel.FolderDiskInfo{Path: diskPath}
	}

	return child, nil
}

// handleFolderDelete implements spec.md §4.6's FOLDER_DELETE: remove the
// node on the target side and detach it from its parent.
func (d *Deps) handleFolderDelete(ctx context.Context, payload any, dryRun bool) error {
	p := payload.(reconcile.FolderPayload)
	folder := p.Source

	if dryRun {
		d.logger().Info("dry-run: would delete folder", slog.String("path", folder.RelativePath))
		return nil
	}

	if folder.OnDisk() {
		if err := os.RemoveAll(folder.Disk.Path); err != nil {
			return fmt.Errorf("handlers: deleting local folder %s: %w", folder.Disk.Path, err)
		}
	} else if folder.OnLine() {
		if err := d.Client.DeleteEntity(ctx, folder.Online.URI); err != nil {
			return fmt.Errorf("handlers: deleting remote folder %s: %w", folder.RelativePath, err)
		}
	}

	p.Target.RemoveSubFolder(folder.Name)

	return nil
}

func actionLabel(a reconcile.Action) string {
	if a == reconcile.ActionUpload {
		return "upload"
	}

	return "download"
}
