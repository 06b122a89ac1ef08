package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/reconcile"
	"github.com/ophirh/smugmug-sync/internal/remotescan"
	"github.com/ophirh/smugmug-sync/internal/synctriplet"
)

// syncAlbumImages implements spec.md §4.6a/§4.6b: diff diskAlbum's and
// onlineAlbum's image lists by filename and, per policy, upload the
// disk-only set, download the online-only set, and/or delete either set.
// ALBUM_ADD reuses this unchanged — a brand-new album is the degenerate
// case where one side's image list is empty, so every image on the other
// side is "missing."
func (d *Deps) syncAlbumImages(ctx context.Context, diskAlbum, onlineAlbum *photomodel.Album, policy reconcile.Policy, dryRun bool) error {
	if onlineAlbum.RequiresImageLoad() {
		if err := d.Remote.LoadImages(ctx, onlineAlbum); err != nil {
			return fmt.Errorf("handlers: loading remote images for %s: %w", onlineAlbum.RelativePath, err)
		}
	}

	diskByName := byFilename(diskAlbum.Images())
	onlineByName := byFilename(onlineAlbum.Images())

	diskOnly := subtract(diskByName, onlineByName)
	onlineOnly := subtract(onlineByName, diskByName)

	if dryRun {
		d.logger().Info("dry-run: album transfer plan",
			slog.String("album", diskAlbum.RelativePath),
			slog.Int("would_upload", boolCount(policy.Action == reconcile.ActionUpload, len(diskOnly))),
			slog.Int("would_download", boolCount(policy.Action == reconcile.ActionDownload, len(onlineOnly))),
			slog.Int("would_delete_on_disk", boolCount(policy.DeleteOnDisk, len(diskOnly))),
			slog.Int("would_delete_online", boolCount(policy.DeleteOnline, len(onlineOnly))),
		)

		return nil
	}

	newDiskImages := append([]*photomodel.Image(nil), diskAlbum.Images()...)

	if policy.Action == reconcile.ActionDownload {
		for _, img := range onlineOnly {
			downloaded, err := d.downloadImage(ctx, img, diskAlbum.Disk.Path)
			if err != nil {
				return err
			}

			newDiskImages = append(newDiskImages, downloaded)
		}
	}

	if policy.Action == reconcile.ActionUpload {
		for _, img := range diskOnly {
			if err := d.uploadImage(ctx, onlineAlbum.Online.URI, img); err != nil {
				return err
			}
		}
	}

	if policy.DeleteOnDisk {
		newDiskImages = removeByName(newDiskImages, diskOnly)

		for _, img := range diskOnly {
			if err := os.Remove(img.Disk.Path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("handlers: deleting local image %s: %w", img.Disk.Path, err)
			}

			d.logger().Info("deleted local image", slog.String("path", img.Disk.Path))
		}
	}

	if policy.DeleteOnline {
		for _, img := range onlineOnly {
			if err := d.Client.DeleteEntity(ctx, img.Online.URI); err != nil {
				return fmt.Errorf("handlers: deleting remote image %s: %w", img.RelativePath(), err)
			}

			d.logger().Info("deleted remote image", slog.String("path", img.RelativePath()))
		}
	}

	diskAlbum.SetImages(newDiskImages)

	if err := d.Remote.LoadImages(ctx, onlineAlbum); err != nil {
		return fmt.Errorf("handlers: reloading remote images for %s: %w", onlineAlbum.RelativePath, err)
	}

	refreshed, err := d.Client.GetAlbum(ctx, onlineAlbum.Online.URI)
	if err != nil {
		return fmt.Errorf("handlers: refreshing album metadata for %s: %w", onlineAlbum.RelativePath, err)
	}

	onlineAlbum.Online.LastUpdated = remotescan.ParseTimestamp(refreshed.LastUpdated)

	if err := synctriplet.RememberSync(diskAlbum.Disk.Path, &onlineAlbum.Online.LastUpdated, d.logger()); err != nil {
		return fmt.Errorf("handlers: recording sync triplet for %s: %w", diskAlbum.RelativePath, err)
	}

	return nil
}

// uploadImage POSTs one disk image to the service (spec.md §4.6a).
func (d *Deps) uploadImage(ctx context.Context, albumURI string, img *photomodel.Image) error {
	diskPath := img.Disk.Path

	if _, err := d.Client.UploadImage(ctx, albumURI, diskPath, "", nil, ""); err != nil {
		return fmt.Errorf("handlers: uploading %s: %w", diskPath, err)
	}

	d.logger().Info("uploaded image",
		slog.String("path", diskPath), slog.String("size", humanize.Bytes(uint64(img.Disk.Size))))

	return nil
}

// downloadImage streams one remote image to destDir/filename (spec.md
// §4.6a). Videos require the LargestVideo second round-trip since the
// archived original is photo-only.
func (d *Deps) downloadImage(ctx context.Context, img *photomodel.Image, destDir string) (*photomodel.Image, error) {
	downloadURI := img.Online.ArchivedURI

	if img.Online.IsVideo {
		url, err := d.Client.LargestVideoURL(ctx, img.Online.LargestVideoURI)
		if err != nil {
			return nil, fmt.Errorf("handlers: resolving video url for %s: %w", img.Filename, err)
		}

		downloadURI = url
	}

	destPath := filepath.Join(destDir, img.Filename)

	if err := d.Client.DownloadTo(ctx, downloadURI, destPath); err != nil {
		return nil, fmt.Errorf("handlers: downloading %s: %w", img.Filename, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("handlers: stat-ing downloaded file %s: %w", destPath, err)
	}

	d.logger().Info("downloaded image",
		slog.String("path", destPath), slog.String("size", humanize.Bytes(uint64(info.Size()))))

	return &photomodel.Image{
		AlbumRelativePath: img.AlbumRelativePath,
		Filename:          img.Filename,
		Type:              photomodel.ImageTypeForSuffix(img.Filename),
		Disk:              &photomodel.DiskInfo{Path: destPath, Size: info.Size()},
	}, nil
}

func byFilename(images []*photomodel.Image) map[string]*photomodel.Image {
	out := make(map[string]*photomodel.Image, len(images))
	for _, img := range images {
		out[img.Filename] = img
	}

	return out
}

func subtract(a, b map[string]*photomodel.Image) []*photomodel.Image {
	var out []*photomodel.Image

	for name, img := range a {
		if _, ok := b[name]; !ok {
			out = append(out, img)
		}
	}

	return out
}

func removeByName(images []*photomodel.Image, toRemove []*photomodel.Image) []*photomodel.Image {
	drop := byFilename(toRemove)

	out := images[:0]

	for _, img := range images {
		if _, ok := drop[img.Filename]; !ok {
			out = append(out, img)
		}
	}

	return out
}

func boolCount(cond bool, n int) int {
	if cond {
		return n
	}

	return 0
}
