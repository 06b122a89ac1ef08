// Package reconcile implements the tree reconciliation engine from
// spec.md §4.4: it walks two independently scanned hierarchies (one
// "source", one "target", determined by sync direction) and emits a
// stream of reconciliation events through an internal/dispatcher.Dispatcher.
//
// It is a pure decision layer — it never touches disk or network itself;
// every mutating effect happens in an internal/handlers handler reacting
// to the events this package fires.
package reconcile

import (
	"context"

	"github.com/ophirh/smugmug-sync/internal/dispatcher"
	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/synctriplet"
)

// Action is the sync direction: which scanned tree is authoritative.
type Action int

const (
	// ActionUpload treats the local tree as source, remote as target
	// (spec.md §4.4's "upload" row).
	ActionUpload Action = iota
	// ActionDownload treats the remote tree as source, local as target.
	ActionDownload
)

// Policy bundles the reconciliation engine's configurable behavior
// (spec.md §4.4's "policy" and §6.2's CLI flags).
type Policy struct {
	Action       Action
	DeleteOnDisk bool
	DeleteOnline bool
	DryRun       bool
	ForceRefresh bool
}

// FolderPayload is the typed payload of a FOLDER_ADD/FOLDER_DELETE event.
type FolderPayload struct {
	// Source is the folder to add, or for a delete the folder to remove.
	Source *photomodel.Folder
	// Target is the parent folder under which Source should be created,
	// or for a delete the parent folder Source is removed from.
	Target *photomodel.Folder
	Policy Policy
}

// AlbumPayload is the typed payload of an ALBUM_ADD/ALBUM_DELETE event.
type AlbumPayload struct {
	Source *photomodel.Album
	Target *photomodel.Folder
	Policy Policy
}

// AlbumSyncPayload is the typed payload of an ALBUM_SYNC event.
type AlbumSyncPayload struct {
	Disk   *photomodel.Album
	Online *photomodel.Album
	Policy Policy
}

// ImageLoader materializes an album's image list on demand. The disk
// side is always eagerly loaded by internal/localscan; this is used for
// the remote side, whose image list spec.md §4.2 leaves lazy.
type ImageLoader func(ctx context.Context, album *photomodel.Album) error

// Engine walks two trees and fires reconciliation events.
type Engine struct {
	dispatcher   *dispatcher.Dispatcher
	policy       Policy
	remoteLoader ImageLoader
}

// New creates an Engine bound to d, firing events according to policy.
// remoteLoader is called by smartCompare's deep tier to load a remote
// album's images before the per-image pass.
func New(d *dispatcher.Dispatcher, policy Policy, remoteLoader ImageLoader) *Engine {
	return &Engine{dispatcher: d, policy: policy, remoteLoader: remoteLoader}
}

// Run walks sourceRoot against targetRoot and fires every event the walk
// discovers. It does not itself wait for handlers to finish: callers call
// dispatcher.Join after Run returns.
func (e *Engine) Run(ctx context.Context, sourceRoot, targetRoot *photomodel.RootFolder) {
	e.walkFolder(ctx, sourceRoot.Folder, targetRoot.Folder, nil)
}

// walkFolder implements spec.md §4.4's folder walk. target may be nil,
// meaning source has no counterpart yet; targetParent is target's parent,
// used as the attach point for a FOLDER_ADD.
func (e *Engine) walkFolder(ctx context.Context, source, target *photomodel.Folder, targetParent *photomodel.Folder) {
	if target == nil {
		e.dispatcher.FireEvent(ctx, dispatcher.KindFolderAdd, FolderPayload{
			Source: source,
			Target: targetParent,
			Policy: e.policy,
		}, e.policy.DryRun)

		return
	}

	for _, name := range source.AlbumNames() {
		sourceAlbum, _ := source.Album(name)
		if sourceAlbum.ImageCount == 0 {
			continue
		}

		targetAlbum, _ := target.Album(name)
		e.walkAlbum(ctx, sourceAlbum, targetAlbum, target)
	}

	for _, name := range source.SubFolderNames() {
		sourceSub, _ := source.SubFolder(name)
		targetSub, _ := target.SubFolder(name)
		e.walkFolder(ctx, sourceSub, targetSub, target)
	}

	if !e.deletionPermitted() {
		return
	}

	sourceAlbumNames := names(source.AlbumNames())
	sourceFolderNames := names(source.SubFolderNames())

	for name, child := range target.AlbumsSnapshot() {
		if sourceAlbumNames[name] {
			continue
		}

		e.dispatcher.FireEvent(ctx, dispatcher.KindAlbumDelete, AlbumPayload{
			Source: child,
			Target: target,
			Policy: e.policy,
		}, e.policy.DryRun)
	}

	for name, child := range target.SubFoldersSnapshot() {
		if sourceFolderNames[name] {
			continue
		}

		e.dispatcher.FireEvent(ctx, dispatcher.KindFolderDelete, FolderPayload{
			Source: child,
			Target: target,
			Policy: e.policy,
		}, e.policy.DryRun)
	}
}

// walkAlbum implements spec.md §4.4's album walk.
func (e *Engine) walkAlbum(ctx context.Context, source, target *photomodel.Album, targetParent *photomodel.Folder) {
	if target == nil {
		e.dispatcher.FireEvent(ctx, dispatcher.KindAlbumAdd, AlbumPayload{
			Source: source,
			Target: targetParent,
			Policy: e.policy,
		}, e.policy.DryRun)

		return
	}

	disk, online := diskAndOnline(source, target, e.policy.Action)

	equal, wasQuick := e.smartCompare(ctx, disk, online)
	if equal {
		if !wasQuick || !disk.Disk.Triplet.Valid {
			recordSync(disk, online)
		}

		return
	}

	e.dispatcher.FireEvent(ctx, dispatcher.KindAlbumSync, AlbumSyncPayload{
		Disk:   disk,
		Online: online,
		Policy: e.policy,
	}, e.policy.DryRun)
}

func (e *Engine) deletionPermitted() bool {
	if e.policy.Action == ActionDownload {
		return e.policy.DeleteOnDisk
	}

	return e.policy.DeleteOnline
}

// diskAndOnline orders (source, target) into (disk-side, online-side)
// regardless of sync direction, since smartCompare and the sync triplet
// are always keyed to the disk album.
func diskAndOnline(source, target *photomodel.Album, action Action) (disk, online *photomodel.Album) {
	if action == ActionUpload {
		return source, target
	}

	return target, source
}

// smartCompare implements spec.md §4.4's three-tier comparison, returning
// (equal, was_quick). The per-image tier triggers a remote image-list load
// via e.remoteLoader when the online side hasn't been loaded yet.
func (e *Engine) smartCompare(ctx context.Context, disk, online *photomodel.Album) (equal, wasQuick bool) {
	if synctriplet.AlreadySynced(disk.Disk.Triplet, online.Online.LastUpdated, disk.Disk.Path, e.policy.ForceRefresh) {
		return true, true
	}

	if disk.RelativePath != online.RelativePath || disk.ImageCount != online.ImageCount {
		return false, true
	}

	if online.RequiresImageLoad() && e.remoteLoader != nil {
		if err := e.remoteLoader(ctx, online); err != nil {
			// Treat a failed lazy load as divergent rather than crash the
			// walk; the handler dispatched for ALBUM_SYNC will surface the
			// same error when it tries the load itself.
			return false, false
		}
	}

	diskImages := disk.SortedImagesByRelativePath()
	onlineImages := online.SortedImagesByRelativePath()

	if len(diskImages) != len(onlineImages) {
		return false, false
	}

	for i := range diskImages {
		if !imagesAreTheSame(diskImages[i], onlineImages[i]) {
			return false, false
		}
	}

	return true, false
}

// imagesAreTheSame resolves spec.md §9's open question: identity is
// path-equality, widened with a size-delta secondary check when both
// sides report a size, mirroring the Python predecessor's Image.compare().
func imagesAreTheSame(disk, online *photomodel.Image) bool {
	if !disk.SameIdentity(online) {
		return false
	}

	if disk.Disk == nil || online.Online == nil {
		return true
	}

	if disk.Disk.Size == 0 || online.Online.Size == 0 {
		return true
	}

	return disk.Disk.Size == online.Online.Size
}

// recordSync writes a fresh sync triplet for disk, keyed to online's
// current last_updated. The disk album is the only side that stores a
// triplet, so this is the album written whichever direction is syncing;
// walkAlbum calls it when the triplet was missing or the comparison went
// past the triplet tier.
func recordSync(disk, online *photomodel.Album) {
	_ = synctriplet.RememberSync(disk.Disk.Path, &online.Online.LastUpdated, nil)
}

func names(sorted []string) map[string]bool {
	out := make(map[string]bool, len(sorted))
	for _, n := range sorted {
		out[n] = true
	}

	return out
}
