package photomodel

import (
	"regexp"
	"sort"
)

// albumDatePattern matches spec.md §3's album_date rule: a directory name
// of the exact form YYYY_MM_DD, optionally followed by " - <anything>".
var albumDatePattern = regexp.MustCompile(`^(\d{4}_\d{2}_\d{2})( - .*)?$`)

// AlbumDiskInfo is the disk-side representation of an album: its
// filesystem path and sync triplet.
type AlbumDiskInfo struct {
	Path    string
	Triplet SyncTriplet
}

// AlbumOnlineInfo is the service-side representation of an album.
type AlbumOnlineInfo struct {
	URI         string
	ImagesURI   string
	LastUpdated float64 // epoch seconds
	ImageCount  int
}

// Album is a leaf folder in the tree: a directory of images/videos.
type Album struct {
	Name         string
	RelativePath string

	Disk   *AlbumDiskInfo
	Online *AlbumOnlineInfo

	// ImageCount is always populated, even for a lazy (unloaded) album.
	ImageCount int

	// images is nil until loaded. A remote album defers loading until the
	// reconciliation engine needs it (spec.md §4.2); a disk album loads
	// eagerly during the scan (spec.md §4.1).
	images []*Image
	loaded bool
}

// OnDisk reports whether this album has a physical-side representation.
func (a *Album) OnDisk() bool { return a.Disk != nil }

// OnLine reports whether this album has a service-side representation.
func (a *Album) OnLine() bool { return a.Online != nil }

// NeedsSync reports whether this album is missing from either side.
func (a *Album) NeedsSync() bool { return !a.OnDisk() || !a.OnLine() }

// RequiresImageLoad reports whether Images() would trigger a load.
func (a *Album) RequiresImageLoad() bool { return !a.loaded }

// Images returns the materialized image list. Callers that may be looking
// at a lazily-scanned remote album must call SetImages (via the loader)
// before this returns anything meaningful; RequiresImageLoad signals that.
func (a *Album) Images() []*Image {
	return a.images
}

// SetImages materializes the image list, marks the album loaded, and sets
// ImageCount to len(images).
func (a *Album) SetImages(images []*Image) {
	a.images = images
	a.loaded = true
	a.ImageCount = len(images)
}

// ResetImages discards the materialized image list and marks the album
// unloaded, so RequiresImageLoad reports true again; ImageCount is left
// unchanged.
func (a *Album) ResetImages() {
	a.images = nil
	a.loaded = false
}

// SortedImagesByRelativePath returns a copy of the image list sorted by
// RelativePath, for use by the smart-comparison per-image pass.
func (a *Album) SortedImagesByRelativePath() []*Image {
	out := make([]*Image, len(a.images))
	copy(out, a.images)

	sort.Slice(out, func(i, j int) bool {
		return out[i].RelativePath() < out[j].RelativePath()
	})

	return out
}

// MatchesAlbumDatePattern reports whether name matches the YYYY_MM_DD( - .*)?
// album-date convention from spec.md §3.
func MatchesAlbumDatePattern(name string) bool {
	return albumDatePattern.MatchString(name)
}

// IsDateOnlyAlbumName reports whether name is exactly YYYY_MM_DD with no
// trailing " - description" — such albums are "overwritable" by richer
// same-dated duplicates per spec.md §3.
func IsDateOnlyAlbumName(name string) bool {
	m := albumDatePattern.FindStringSubmatch(name)
	return m != nil && m[2] == ""
}
