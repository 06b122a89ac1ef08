// Package localscan walks the on-disk photo library, building the
// Folder/Album/Image tree described in spec.md §4.1. It is the disk-side
// counterpart to internal/remotescan.
package localscan

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/synctriplet"
)

// ErrIgnoreGuard is returned when ignoreFileName is found at baseDir
// itself, the localscan analogue of the teacher's ErrNosyncGuard
// (internal/sync/scanner.go:19-26,89-100). It aborts the whole scan
// rather than returning a partial tree, preventing a destructive sync
// against an accidentally-empty or unmounted volume (spec.md §4.1).
var ErrIgnoreGuard = errors.New("localscan: .smugmugignore guard file found at base directory, refusing to scan")

// ignoreFileName is the guard file name. At baseDir it aborts the entire
// scan (see ErrIgnoreGuard); in any other subdirectory it only prunes
// that one subtree, letting the rest of the library scan normally — a
// weaker, per-directory opt-out for volumes the user wants excluded
// without aborting the whole run.
const ignoreFileName = ".smugmugignore"

// developedDirName is the raw-plus-developed child directory spec.md
// §4.1 special-cases.
const developedDirName = "Developed"

// skippedDirNames are case-insensitively skipped basenames (spec.md §4.1).
var skippedDirNames = map[string]bool{
	"originals": true,
	"lightroom": true,
	"developed": true,
}

// Scanner walks a base directory into a RootFolder.
type Scanner struct {
	logger *slog.Logger
	stats  *photomodel.Stats
}

// New creates a Scanner.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Scanner{logger: logger}
}

// Scan walks baseDir depth-first and returns the populated RootFolder.
// It first checks baseDir itself for the ignore guard file and returns
// ErrIgnoreGuard without scanning anything if found (spec.md §4.1).
// Beyond that, unreadable directories are logged and skipped, never
// aborting the scan.
func (s *Scanner) Scan(baseDir string) (*photomodel.RootFolder, error) {
	if err := s.checkIgnoreGuard(baseDir); err != nil {
		return nil, err
	}

	root := photomodel.NewRootFolder()
	root.Disk = &photomodel.FolderDiskInfo{Path: baseDir}
	s.stats = root.Stats

	if err := s.walk(baseDir, root.Folder, ""); err != nil {
		return nil, fmt.Errorf("localscan: walking %s: %w", baseDir, err)
	}

	return root, nil
}

// checkIgnoreGuard returns ErrIgnoreGuard if the ignore file exists at
// baseDir itself.
func (s *Scanner) checkIgnoreGuard(baseDir string) error {
	guardPath := filepath.Join(baseDir, ignoreFileName)

	_, err := os.Stat(guardPath)
	if err == nil {
		s.logger.Warn("localscan: ignore guard found at base directory, refusing to scan",
			slog.String("path", guardPath))

		return ErrIgnoreGuard
	}

	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("localscan: checking ignore guard: %w", err)
	}

	return nil
}

// walk recurses into dir (the physical path corresponding to folder, whose
// logical path is relativePath), classifying each kept sub-directory as an
// Album or a Folder and attaching it to folder.
func (s *Scanner) walk(dir string, folder *photomodel.Folder, relativePath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("localscan: cannot read directory, skipping",
			slog.String("path", dir), slog.String("error", err.Error()))

		return nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		originalName := entry.Name()
		if shouldSkip(originalName) {
			continue
		}

		// Use the original filesystem name for I/O, the NFC-normalized name
		// for the logical tree (macOS stores directory names NFD-decomposed;
		// the remote service and the JSON sync triplet always see NFC).
		name := norm.NFC.String(originalName)

		childPath := filepath.Join(dir, originalName)
		childRelPath := folder.ChildRelativePath(name)

		if err := s.processSubdir(childPath, childRelPath, name, folder); err != nil {
			return err
		}
	}

	return nil
}

// processSubdir classifies one kept sub-directory and recurses or
// materializes an album as appropriate.
func (s *Scanner) processSubdir(childPath, childRelPath, name string, parent *photomodel.Folder) error {
	// Unlike the base-directory case (ErrIgnoreGuard), the guard file in a
	// subdirectory only prunes that one subtree; it does not abort the run.
	if _, err := os.Stat(filepath.Join(childPath, ignoreFileName)); err == nil {
		s.logger.Debug("localscan: ignore guard found, skipping subtree",
			slog.String("path", childPath))

		return nil
	}

	images, isAlbum, err := s.collectAlbumImages(childPath, childRelPath)
	if err != nil {
		return err
	}

	if isAlbum {
		album := photomodel.Album{
			Name:         name,
			RelativePath: childRelPath,
			Disk: &photomodel.AlbumDiskInfo{
				Path:    childPath,
				Triplet: synctriplet.Load(childPath, s.logger),
			},
		}
		album.SetImages(images)

		parent.AddAlbum(&album)
		s.stats.AddAlbum()
		s.stats.AddImages(len(images))

		return nil
	}

	hasSubdir, err := containsSubdir(childPath)
	if err != nil {
		s.logger.Warn("localscan: cannot inspect directory, skipping",
			slog.String("path", childPath), slog.String("error", err.Error()))

		return nil
	}

	if !hasSubdir {
		// Neither an album nor a folder: an empty directory, skipped silently.
		return nil
	}

	child := photomodel.NewFolder(name, childRelPath)
	child.Disk = &photomodel.FolderDiskInfo{Path: childPath}
	parent.AddSubFolder(child)
	s.stats.AddFolder()

	return s.walk(childPath, child, childRelPath)
}

// collectAlbumImages reports whether dir is an Album (it directly contains
// at least one supported image file) and, if so, its image list,
// including the Developed/ raw-plus-developed substitution from spec.md
// §4.1.
func (s *Scanner) collectAlbumImages(dir, relativePath string) ([]*photomodel.Image, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("localscan: cannot read directory, skipping",
			slog.String("path", dir), slog.String("error", err.Error()))

		return nil, false, nil
	}

	developed := make(map[string]developedFile)

	if devEntries, err := os.ReadDir(filepath.Join(dir, developedDirName)); err == nil {
		for _, de := range devEntries {
			if de.IsDir() {
				continue
			}

			info, err := de.Info()
			if err != nil {
				continue
			}

			developed[de.Name()] = developedFile{
				path: filepath.Join(dir, developedDirName, de.Name()),
				size: info.Size(),
			}
		}
	}

	var images []*photomodel.Image

	for _, entry := range entries {
		if entry.IsDir() || !photomodel.IsImageSuffix(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("localscan: cannot stat file, skipping",
				slog.String("path", filepath.Join(dir, entry.Name())), slog.String("error", err.Error()))

			continue
		}

		disk := &photomodel.DiskInfo{
			Path: filepath.Join(dir, entry.Name()),
			Size: info.Size(),
		}

		if dev, ok := developed[entry.Name()]; ok {
			disk.DevelopedPath = dev.path
			disk.Path = dev.path
			disk.Size = dev.size
		}

		images = append(images, &photomodel.Image{
			AlbumRelativePath: relativePath,
			Filename:          entry.Name(),
			Type:              photomodel.ImageTypeForSuffix(entry.Name()),
			Disk:              disk,
		})
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Filename < images[j].Filename })

	return images, len(images) > 0, nil
}

type developedFile struct {
	path string
	size int64
}

// shouldSkip implements spec.md §4.1's skip rules: dotfiles, the
// case-insensitive name set, and any Picasa path segment.
func shouldSkip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}

	if skippedDirNames[strings.ToLower(name)] {
		return true
	}

	if strings.Contains(name, "Picasa") {
		return true
	}

	return false
}

// containsSubdir reports whether dir has at least one kept sub-directory,
// the spec.md §4.1 Folder classification test.
func containsSubdir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if entry.IsDir() && !shouldSkip(entry.Name()) {
			return true, nil
		}
	}

	return false, nil
}
