package photomodel

import (
	"path"
	"sync"
)

// Folder is an interior node of the tree. Folders never contain images
// directly: a directory with images becomes an Album, a directory with
// sub-directories becomes a Folder (spec.md §3).
//
// subFolders and albums are guarded by mu because siblings can be
// populated concurrently during a remote scan (spec.md §4.2's "atomic
// accumulation" requirement) and mutated concurrently by handlers acting
// on different children (spec.md §5's shared-resource policy). Per
// spec.md §9's design note, a per-folder mutex is the implementer's
// discretion for this; here it is used rather than relying on a
// concurrent map, because callers frequently need read-then-write
// (insert-if-absent) semantics.
type Folder struct {
	Name         string
	RelativePath string

	Disk   *FolderDiskInfo
	Online *FolderOnlineInfo

	mu         sync.Mutex
	subFolders map[string]*Folder
	albums     map[string]*Album
}

// FolderDiskInfo is the disk-side representation of a folder.
type FolderDiskInfo struct {
	Path string
}

// FolderOnlineInfo is the service-side representation of a folder.
type FolderOnlineInfo struct {
	URI          string
	SubFoldersURI string
	AlbumsURI    string
	NodeURI      string
	DateModified float64
}

// NewFolder creates an empty folder at the given relative path.
func NewFolder(name, relativePath string) *Folder {
	return &Folder{
		Name:         name,
		RelativePath: relativePath,
		subFolders:   make(map[string]*Folder),
		albums:       make(map[string]*Album),
	}
}

// OnDisk reports whether this folder has a physical-side representation.
func (f *Folder) OnDisk() bool { return f.Disk != nil }

// OnLine reports whether this folder has a service-side representation.
func (f *Folder) OnLine() bool { return f.Online != nil }

// AddSubFolder inserts a child folder, keyed by name.
func (f *Folder) AddSubFolder(child *Folder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subFolders[child.Name] = child
}

// AddAlbum inserts a child album, keyed by name.
func (f *Folder) AddAlbum(child *Album) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.albums[child.Name] = child
}

// RemoveSubFolder detaches a child folder by name.
func (f *Folder) RemoveSubFolder(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.subFolders, name)
}

// RemoveAlbum detaches a child album by name.
func (f *Folder) RemoveAlbum(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.albums, name)
}

// SubFolder looks up a child folder by name.
func (f *Folder) SubFolder(name string) (*Folder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.subFolders[name]
	return c, ok
}

// Album looks up a child album by name.
func (f *Folder) Album(name string) (*Album, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.albums[name]
	return c, ok
}

// SubFolderNames returns a sorted snapshot of child folder names.
func (f *Folder) SubFolderNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return sortedKeysFolders(f.subFolders)
}

// AlbumNames returns a sorted snapshot of child album names.
func (f *Folder) AlbumNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return sortedKeysAlbums(f.albums)
}

// SubFoldersSnapshot returns a copy of the sub-folder map for iteration
// that tolerates concurrent mutation by a handler (spec.md §4.4's folder
// walk delete pass: "iterate over a snapshot of T's children").
func (f *Folder) SubFoldersSnapshot() map[string]*Folder {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]*Folder, len(f.subFolders))
	for k, v := range f.subFolders {
		out[k] = v
	}

	return out
}

// AlbumsSnapshot returns a copy of the album map for the same reason.
func (f *Folder) AlbumsSnapshot() map[string]*Album {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]*Album, len(f.albums))
	for k, v := range f.albums {
		out[k] = v
	}

	return out
}

// ChildRelativePath joins this folder's relative path with a child name.
func (f *Folder) ChildRelativePath(name string) string {
	return path.Join(f.RelativePath, name)
}

// NewRootFolder creates the distinguished root: zero-length relative path,
// a fresh Stats accumulator.
func NewRootFolder() *RootFolder {
	return &RootFolder{
		Folder: NewFolder("", ""),
		Stats:  &Stats{},
	}
}

// RootFolder is the distinguished root of a scanned tree, carrying a
// mutable Stats accumulator (spec.md §3).
type RootFolder struct {
	*Folder
	Stats *Stats
}

// Stats accumulates counts observed while scanning a tree.
type Stats struct {
	mu          sync.Mutex
	FolderCount int
	AlbumCount  int
	ImageCount  int
}

// AddFolder atomically increments the folder counter.
func (s *Stats) AddFolder() {
	s.mu.Lock()
	s.FolderCount++
	s.mu.Unlock()
}

// AddAlbum atomically increments the album counter.
func (s *Stats) AddAlbum() {
	s.mu.Lock()
	s.AlbumCount++
	s.mu.Unlock()
}

// AddImages atomically adds n to the image counter.
func (s *Stats) AddImages(n int) {
	s.mu.Lock()
	s.ImageCount += n
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counts.
func (s *Stats) Snapshot() (folders, albums, images int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.FolderCount, s.AlbumCount, s.ImageCount
}
