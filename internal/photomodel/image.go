// Package photomodel defines the in-memory tree of folders, albums, and
// images shared by the local and remote scanners and consumed by the
// reconciliation engine. Types here are pure data — no I/O.
package photomodel

import (
	"path"
	"strings"
)

// ImageType is the closed enum of supported photo/video suffixes.
type ImageType int

const (
	// ImageTypeUnknown marks a suffix that is not a supported photo/video type.
	ImageTypeUnknown ImageType = iota
	ImageTypePhotoJPEG
	ImageTypePhotoHEIC
	ImageTypeMovieMP4
	ImageTypeMovieConvertible
)

// IsVideo reports whether this image type is a movie type.
func (t ImageType) IsVideo() bool {
	return t == ImageTypeMovieMP4 || t == ImageTypeMovieConvertible
}

// RequiresConversion reports whether this type needs transcoding before
// it can be treated like a native upload (HEIC photos, legacy movie
// containers). Conversion itself is out of scope (spec.md §1); the flag
// exists so handlers can annotate or defer such images.
func (t ImageType) RequiresConversion() bool {
	return t == ImageTypePhotoHEIC || t == ImageTypeMovieConvertible
}

// imageTypesBySuffix is the closed suffix → type mapping from spec.md §3.
var imageTypesBySuffix = map[string]ImageType{
	".jpg":  ImageTypePhotoJPEG,
	".jpeg": ImageTypePhotoJPEG,
	".heic": ImageTypePhotoHEIC,
	".mp4":  ImageTypeMovieMP4,
	".avi":  ImageTypeMovieConvertible,
	".m4v":  ImageTypeMovieConvertible,
	".mov":  ImageTypeMovieConvertible,
	".mts":  ImageTypeMovieConvertible,
}

// ImageTypeForSuffix classifies a filename by its lowercased suffix.
// Returns ImageTypeUnknown for anything not in the supported set.
func ImageTypeForSuffix(filename string) ImageType {
	ext := strings.ToLower(path.Ext(filename))
	return imageTypesBySuffix[ext]
}

// IsImageSuffix reports whether filename carries a supported image/video suffix.
func IsImageSuffix(filename string) bool {
	return ImageTypeForSuffix(filename) != ImageTypeUnknown
}

// DiskInfo is the physical-side representation of an image.
type DiskInfo struct {
	// Path is the absolute filesystem path used for I/O. For a developed
	// variant this is the Developed/ file, not the logical album path.
	Path string
	// Size is the authoritative byte size — the developed variant's size
	// when Path points at one.
	Size int64
	// DevelopedPath is set when this image's disk representation was
	// overridden by a same-named file under a child Developed/ directory.
	DevelopedPath string
}

// OnlineInfo is the service-side representation of an image.
type OnlineInfo struct {
	// URI is the image's own entity URI (used for deletes and as the
	// "replace this image" target on a re-upload).
	URI string
	// ArchivedURI is the direct download URL for a photo's original file.
	// Empty for videos, which download via LargestVideoURI instead.
	ArchivedURI string
	// LargestVideoURI is the sub-resource that resolves to the actual
	// video download URL (spec.md §6.1's "second round-trip").
	LargestVideoURI string
	Size            int64
	IsVideo         bool
	// Caption and Keywords are informational metadata mirrored from the
	// remote scan (see SPEC_FULL.md data-model addendum). Never compared
	// for equality and never fed into an upload: there is no disk-side
	// caption source in this implementation, since the original tool's
	// captions came from its Picasa integration, which this scanner's
	// skip rules exclude.
	Caption  string
	Keywords []string
}

// Image is a leaf in an album: a single photo or video.
type Image struct {
	// AlbumRelativePath is the path of the image's logical album, relative
	// to the tree root — NOT including Filename.
	AlbumRelativePath string
	Filename          string
	Type              ImageType

	Disk   *DiskInfo
	Online *OnlineInfo

	// Processing marks an online image the service has not finished
	// ingesting yet (spec.md §6.1). Such images are excluded from
	// comparisons and transfers.
	Processing bool
}

// RelativePath is the composite identity key: AlbumRelativePath/Filename.
func (i *Image) RelativePath() string {
	return path.Join(i.AlbumRelativePath, i.Filename)
}

// OnDisk reports whether this image has a physical-side representation.
func (i *Image) OnDisk() bool { return i.Disk != nil }

// OnLine reports whether this image has a service-side representation.
func (i *Image) OnLine() bool { return i.Online != nil }

// NeedsSync reports whether this image is missing from either side.
func (i *Image) NeedsSync() bool { return !i.OnDisk() || !i.OnLine() }

// SameIdentity reports whether two images share the identity key
// (album_relative_path / filename) per spec.md §3's equality definition.
func (i *Image) SameIdentity(other *Image) bool {
	return i.RelativePath() == other.RelativePath()
}

