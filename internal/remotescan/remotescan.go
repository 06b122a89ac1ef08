// Package remotescan paginates the service's node tree into the same
// Folder/Album/Image shape internal/localscan builds for disk, as
// described in spec.md §4.2. Images are left unloaded; the reconciliation
// engine loads an album's images lazily, only when it needs them.
package remotescan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/smugmug"
)

// dateLayout is the service's DateModified/LastUpdated wire format
// (spec.md §6.1).
const dateLayout = "2006-01-02T15:04:05Z0700"

// siblingConcurrency bounds how many sibling sub-folders/albums are
// fetched in parallel per folder (spec.md §4.2's "concurrent across
// siblings at the implementer's discretion").
const siblingConcurrency = 10

// Scanner walks the service's folder/album tree via a smugmug.Client.
type Scanner struct {
	client      *smugmug.Client
	logger      *slog.Logger
	testNodeURI string // skipped to avoid the "test folder" self-recursion hazard (spec.md §4.2)
}

// New creates a Scanner. testNodeURI, when non-empty, names a sub-folder
// (by its folder URI or its node URI) that must never be recursed into.
func New(client *smugmug.Client, testNodeURI string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Scanner{
		client:      client,
		logger:      logger,
		testNodeURI: testNodeURI,
	}
}

// Scan walks rootFolderURI and returns the populated RootFolder mirror.
func (s *Scanner) Scan(ctx context.Context, rootFolderURI string) (*photomodel.RootFolder, error) {
	root := photomodel.NewRootFolder()

	folder, err := s.client.GetFolder(ctx, rootFolderURI)
	if err != nil {
		return nil, fmt.Errorf("remotescan: fetching root folder: %w", err)
	}

	folder.URI = rootFolderURI
	root.Online = folderOnlineInfo(folder)

	if err := s.walk(ctx, root.Folder, root.Stats); err != nil {
		return nil, fmt.Errorf("remotescan: walking remote tree: %w", err)
	}

	return root, nil
}

// walk fetches folder's sub-folders and albums concurrently (bounded by a
// semaphore of siblingConcurrency permits owned by this call) and recurses. Accumulation into stats and folder's child maps is
// atomic via photomodel.Folder's internal mutex and photomodel.Stats'.
func (s *Scanner) walk(ctx context.Context, folder *photomodel.Folder, stats *photomodel.Stats) error {
	if folder.Online == nil {
		return nil
	}

	subFolders, err := s.client.ListSubFolders(ctx, folder.Online.SubFoldersURI)
	if err != nil {
		return fmt.Errorf("remotescan: listing sub-folders of %s: %w", folder.RelativePath, err)
	}

	albums, err := s.client.ListAlbums(ctx, folder.Online.AlbumsURI)
	if err != nil {
		return fmt.Errorf("remotescan: listing albums of %s: %w", folder.RelativePath, err)
	}

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		firstErr error
	)

	recordErr := func(err error) {
		if err == nil {
			return
		}

		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	sem := semaphore.NewWeighted(siblingConcurrency)

	for _, sf := range subFolders {
		sf := sf

		if s.testNodeURI != "" && (sf.URI == s.testNodeURI || sf.Uris.Node.URI == s.testNodeURI) {
			s.logger.Debug("remotescan: skipping test folder", slog.String("uri", sf.Uris.Node.URI))
			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				recordErr(err)
				return
			}
			defer sem.Release(1)

			recordErr(s.addSubFolder(ctx, folder, stats, sf))
		}()
	}

	for _, a := range albums {
		a := a

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				recordErr(err)
				return
			}
			defer sem.Release(1)

			s.addAlbum(folder, stats, a)
		}()
	}

	wg.Wait()

	return firstErr
}

// addSubFolder materializes one remote sub-folder, attaches it to parent,
// bumps stats, and recurses.
func (s *Scanner) addSubFolder(ctx context.Context, parent *photomodel.Folder, stats *photomodel.Stats, sf smugmug.Folder) error {
	child := photomodel.NewFolder(sf.Name, parent.ChildRelativePath(sf.Name))
	child.Online = folderOnlineInfo(&sf)

	parent.AddSubFolder(child)
	stats.AddFolder()

	return s.walk(ctx, child, stats)
}

// addAlbum materializes one remote album leaf and attaches it to parent.
func (s *Scanner) addAlbum(parent *photomodel.Folder, stats *photomodel.Stats, a smugmug.Album) {
	album := &photomodel.Album{
		Name:         a.Name,
		RelativePath: parent.ChildRelativePath(a.Name),
		ImageCount:   a.ImageCount,
		Online: &photomodel.AlbumOnlineInfo{
			URI:         a.URI,
			ImagesURI:   a.Uris.AlbumImages.URI,
			LastUpdated: parseDate(a.LastUpdated),
			ImageCount:  a.ImageCount,
		},
	}

	parent.AddAlbum(album)
	stats.AddAlbum()
	stats.AddImages(a.ImageCount)
}

// folderOnlineInfo builds a FolderOnlineInfo from a decoded smugmug.Folder.
func folderOnlineInfo(f *smugmug.Folder) *photomodel.FolderOnlineInfo {
	return &photomodel.FolderOnlineInfo{
		URI:           f.URI,
		SubFoldersURI: f.Uris.Folders.URI,
		AlbumsURI:     f.Uris.FolderAlbums.URI,
		NodeURI:       f.Uris.Node.URI,
		DateModified:  parseDate(f.DateModified),
	}
}

// LoadImages fetches and materializes album's image list on demand,
// implementing the lazy-load half of spec.md §4.2 ("images not loaded").
// The reconciliation engine calls this only for albums whose smart
// comparison requires a per-image pass.
func (s *Scanner) LoadImages(ctx context.Context, album *photomodel.Album) error {
	if album.Online == nil {
		return fmt.Errorf("remotescan: loading images for %s: album has no online side", album.RelativePath)
	}

	wireImages, err := s.client.ListImages(ctx, album.Online.ImagesURI)
	if err != nil {
		return fmt.Errorf("remotescan: listing images of %s: %w", album.RelativePath, err)
	}

	images := make([]*photomodel.Image, 0, len(wireImages))

	for _, img := range wireImages {
		images = append(images, &photomodel.Image{
			AlbumRelativePath: album.RelativePath,
			Filename:          img.FileName,
			Type:              photomodel.ImageTypeForSuffix(img.FileName),
			Online: &photomodel.OnlineInfo{
				URI:             img.URI,
				ArchivedURI:     img.ArchivedURI,
				LargestVideoURI: img.Uris.LargestVideo.URI,
				Size:            img.Size,
				IsVideo:         img.IsVideo,
				Caption:         img.Caption,
				Keywords:        splitKeywords(img.Keywords),
			},
			Processing: img.Processing,
		})
	}

	album.SetImages(images)

	return nil
}

// splitKeywords parses the service's semicolon-delimited keyword string
// (the same delimiter UploadImage's X-Smug-Keywords header uses).
func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}

	return strings.Split(raw, ";")
}

// ParseTimestamp converts the service's "%Y-%m-%dT%H:%M:%S%z" wire
// timestamp to epoch seconds, for callers (such as internal/handlers) that
// need to interpret a freshly re-fetched LastUpdated the same way the
// scanner did.
func ParseTimestamp(s string) float64 {
	return parseDate(s)
}

// parseDate converts the service's "%Y-%m-%dT%H:%M:%S%z" timestamp (spec.md
// §6.1) to epoch seconds. An unparseable or empty string yields zero,
// which the reconciliation engine's DELTA tolerance treats as "long ago."
func parseDate(s string) float64 {
	if s == "" {
		return 0
	}

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0
	}

	return float64(t.Unix())
}

