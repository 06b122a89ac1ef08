package reconcile

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophirh/smugmug-sync/internal/dispatcher"
	"github.com/ophirh/smugmug-sync/internal/photomodel"
	"github.com/ophirh/smugmug-sync/internal/synctriplet"
)

func newDiskAlbum(t *testing.T, name, relPath string, imageCount int, triplet photomodel.SyncTriplet) *photomodel.Album {
	t.Helper()

	return &photomodel.Album{
		Name:         name,
		RelativePath: relPath,
		ImageCount:   imageCount,
		Disk: &photomodel.AlbumDiskInfo{
			Path:    t.TempDir(),
			Triplet: triplet,
		},
	}
}

func newOnlineAlbum(name, relPath string, imageCount int, lastUpdated float64) *photomodel.Album {
	return &photomodel.Album{
		Name:         name,
		RelativePath: relPath,
		ImageCount:   imageCount,
		Online: &photomodel.AlbumOnlineInfo{
			URI:         "/album/" + name,
			LastUpdated: lastUpdated,
			ImageCount:  imageCount,
		},
	}
}

func TestWalkFolder_FiresAddWhenTargetMissing(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(nil)

	var fired []dispatcher.Kind

	d.Subscribe(dispatcher.KindFolderAdd, func(_ context.Context, payload any, _ bool) error {
		fired = append(fired, dispatcher.KindFolderAdd)

		p := payload.(FolderPayload)
		assert.Equal(t, "Trips", p.Source.Name)

		return nil
	})

	source := photomodel.NewRootFolder()
	trips := photomodel.NewFolder("Trips", "Trips")
	source.Folder.AddSubFolder(trips)

	target := photomodel.NewRootFolder()

	e := New(d, Policy{Action: ActionUpload}, nil)
	e.Run(context.Background(), source, target)

	require.NoError(t, d.Join(context.Background()))
	assert.Equal(t, []dispatcher.Kind{dispatcher.KindFolderAdd}, fired)
}

func TestWalkAlbum_FiresAlbumAddWhenTargetMissing(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(nil)

	var got AlbumPayload

	d.Subscribe(dispatcher.KindAlbumAdd, func(_ context.Context, payload any, _ bool) error {
		got = payload.(AlbumPayload)
		return nil
	})

	source := photomodel.NewRootFolder()
	album := newDiskAlbum(t, "Vacation", "Vacation", 2, photomodel.SyncTriplet{})
	source.Folder.AddAlbum(album)

	target := photomodel.NewRootFolder()

	e := New(d, Policy{Action: ActionUpload}, nil)
	e.Run(context.Background(), source, target)

	require.NoError(t, d.Join(context.Background()))
	assert.Equal(t, "Vacation", got.Source.Name)
}

func TestWalkAlbum_SkipsEmptyAlbumsEntirely(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(nil)

	fired := false
	d.Subscribe(dispatcher.KindAlbumAdd, func(_ context.Context, _ any, _ bool) error {
		fired = true
		return nil
	})

	source := photomodel.NewRootFolder()
	empty := newDiskAlbum(t, "Empty", "Empty", 0, photomodel.SyncTriplet{})
	source.Folder.AddAlbum(empty)

	target := photomodel.NewRootFolder()

	e := New(d, Policy{Action: ActionUpload}, nil)
	e.Run(context.Background(), source, target)

	require.NoError(t, d.Join(context.Background()))
	assert.False(t, fired, "a zero-image album must never trigger ALBUM_ADD")
}

func TestSmartCompare_TripletHitSkipsEverything(t *testing.T) {
	t.Parallel()

	loaderCalled := false
	loader := func(_ context.Context, _ *photomodel.Album) error {
		loaderCalled = true
		return nil
	}

	disk := newDiskAlbum(t, "Vacation", "Vacation", 2, photomodel.SyncTriplet{
		Valid:      true,
		SyncTime:   1000,
		OnlineTime: 500,
		DiskTime:   900,
	})
	require.NoError(t, os.Chtimes(disk.Disk.Path, time.Unix(900, 0), time.Unix(900, 0)))
	online := newOnlineAlbum("Vacation", "Vacation", 2, 500)

	e := New(dispatcher.New(nil), Policy{Action: ActionUpload}, loader)

	equal, wasQuick := e.smartCompare(context.Background(), disk, online)
	assert.True(t, equal)
	assert.True(t, wasQuick)
	assert.False(t, loaderCalled, "a triplet hit must never trigger a remote load")
}

func TestSmartCompare_MetadataMismatchIsDivergentWithoutLoad(t *testing.T) {
	t.Parallel()

	loaderCalled := false
	loader := func(_ context.Context, _ *photomodel.Album) error {
		loaderCalled = true
		return nil
	}

	disk := newDiskAlbum(t, "Vacation", "Vacation", 2, photomodel.SyncTriplet{})
	online := newOnlineAlbum("Vacation", "Vacation", 3, 999)

	e := New(dispatcher.New(nil), Policy{Action: ActionUpload}, loader)

	equal, wasQuick := e.smartCompare(context.Background(), disk, online)
	assert.False(t, equal)
	assert.True(t, wasQuick)
	assert.False(t, loaderCalled, "an image-count mismatch is decided without ever loading images")
}

func TestSmartCompare_DeepTierLoadsOnlineImagesThenMatches(t *testing.T) {
	t.Parallel()

	diskImg := &photomodel.Image{
		AlbumRelativePath: "Vacation",
		Filename:          "a.jpg",
		Disk:              &photomodel.DiskInfo{Path: "a.jpg", Size: 100},
	}

	disk := newDiskAlbum(t, "Vacation", "Vacation", 1, photomodel.SyncTriplet{})
	disk.SetImages([]*photomodel.Image{diskImg})

	online := newOnlineAlbum("Vacation", "Vacation", 1, 999)

	loaderCalled := false
	loader := func(_ context.Context, album *photomodel.Album) error {
		loaderCalled = true
		album.SetImages([]*photomodel.Image{
			{
				AlbumRelativePath: "Vacation",
				Filename:          "a.jpg",
				Online:            &photomodel.OnlineInfo{URI: "/image/a", Size: 100},
			},
		})
		return nil
	}

	e := New(dispatcher.New(nil), Policy{Action: ActionUpload}, loader)

	equal, wasQuick := e.smartCompare(context.Background(), disk, online)
	assert.True(t, equal)
	assert.False(t, wasQuick)
	assert.True(t, loaderCalled, "the deep tier must trigger the remote load exactly when needed")
}

func TestSmartCompare_DeepTierDetectsSizeDivergence(t *testing.T) {
	t.Parallel()

	diskImg := &photomodel.Image{
		AlbumRelativePath: "Vacation",
		Filename:          "a.jpg",
		Disk:              &photomodel.DiskInfo{Path: "a.jpg", Size: 100},
	}

	disk := newDiskAlbum(t, "Vacation", "Vacation", 1, photomodel.SyncTriplet{})
	disk.SetImages([]*photomodel.Image{diskImg})

	online := newOnlineAlbum("Vacation", "Vacation", 1, 999)

	loader := func(_ context.Context, album *photomodel.Album) error {
		album.SetImages([]*photomodel.Image{
			{
				AlbumRelativePath: "Vacation",
				Filename:          "a.jpg",
				Online:            &photomodel.OnlineInfo{URI: "/image/a", Size: 999},
			},
		})
		return nil
	}

	e := New(dispatcher.New(nil), Policy{Action: ActionUpload}, loader)

	equal, _ := e.smartCompare(context.Background(), disk, online)
	assert.False(t, equal)
}

func TestSmartCompare_LoaderErrorIsTreatedAsDivergent(t *testing.T) {
	t.Parallel()

	disk := newDiskAlbum(t, "Vacation", "Vacation", 1, photomodel.SyncTriplet{})
	disk.SetImages([]*photomodel.Image{{AlbumRelativePath: "Vacation", Filename: "a.jpg"}})

	online := newOnlineAlbum("Vacation", "Vacation", 1, 999)

	loader := func(_ context.Context, _ *photomodel.Album) error {
		return errors.New("network down")
	}

	e := New(dispatcher.New(nil), Policy{Action: ActionUpload}, loader)

	equal, wasQuick := e.smartCompare(context.Background(), disk, online)
	assert.False(t, equal)
	assert.False(t, wasQuick)
}

func TestWalkAlbum_FiresAlbumSyncOnDivergence(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(nil)

	var got AlbumSyncPayload
	d.Subscribe(dispatcher.KindAlbumSync, func(_ context.Context, payload any, _ bool) error {
		got = payload.(AlbumSyncPayload)
		return nil
	})

	source := photomodel.NewRootFolder()
	sourceAlbum := newDiskAlbum(t, "Vacation", "Vacation", 2, photomodel.SyncTriplet{})
	source.Folder.AddAlbum(sourceAlbum)

	target := photomodel.NewRootFolder()
	targetAlbum := newOnlineAlbum("Vacation", "Vacation", 3, 999)
	target.Folder.AddAlbum(targetAlbum)

	e := New(d, Policy{Action: ActionUpload}, nil)
	e.Run(context.Background(), source, target)

	require.NoError(t, d.Join(context.Background()))
	assert.Equal(t, "Vacation", got.Disk.Name)
	assert.Equal(t, "Vacation", got.Online.Name)
}

func TestWalkAlbum_RecordsSyncWhenNoTripletExistedYet(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(nil)

	source := photomodel.NewRootFolder()
	diskAlbum := newDiskAlbum(t, "Vacation", "Vacation", 1, photomodel.SyncTriplet{})
	diskAlbum.SetImages([]*photomodel.Image{
		{AlbumRelativePath: "Vacation", Filename: "a.jpg", Disk: &photomodel.DiskInfo{Path: "a.jpg", Size: 100}},
	})
	source.Folder.AddAlbum(diskAlbum)

	target := photomodel.NewRootFolder()
	onlineAlbum := newOnlineAlbum("Vacation", "Vacation", 1, 777)
	target.Folder.AddAlbum(onlineAlbum)

	loader := func(_ context.Context, album *photomodel.Album) error {
		album.SetImages([]*photomodel.Image{
			{AlbumRelativePath: "Vacation", Filename: "a.jpg", Online: &photomodel.OnlineInfo{URI: "/image/a", Size: 100}},
		})
		return nil
	}

	e := New(d, Policy{Action: ActionUpload}, loader)
	e.Run(context.Background(), source, target)

	require.NoError(t, d.Join(context.Background()))

	triplet := synctriplet.Load(diskAlbum.Disk.Path, nil)
	require.True(t, triplet.Valid, "a never-before-synced album that compares equal must get a fresh triplet")
	assert.InDelta(t, 777, triplet.OnlineTime, 0.001)
}

func TestDeletionPermitted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy Policy
		want   bool
	}{
		{"download without delete flag", Policy{Action: ActionDownload}, false},
		{"download with delete-on-disk", Policy{Action: ActionDownload, DeleteOnDisk: true}, true},
		{"upload without delete flag", Policy{Action: ActionUpload}, false},
		{"upload with delete-online", Policy{Action: ActionUpload, DeleteOnline: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := New(dispatcher.New(nil), tt.policy, nil)
			assert.Equal(t, tt.want, e.deletionPermitted())
		})
	}
}

func TestWalkFolder_FiresDeleteForTargetOnlyChildrenWhenPermitted(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(nil)

	var deletedAlbums, deletedFolders []string

	d.Subscribe(dispatcher.KindAlbumDelete, func(_ context.Context, payload any, _ bool) error {
		deletedAlbums = append(deletedAlbums, payload.(AlbumPayload).Source.Name)
		return nil
	})
	d.Subscribe(dispatcher.KindFolderDelete, func(_ context.Context, payload any, _ bool) error {
		deletedFolders = append(deletedFolders, payload.(FolderPayload).Source.Name)
		return nil
	})

	source := photomodel.NewRootFolder()

	target := photomodel.NewRootFolder()
	target.Folder.AddAlbum(newOnlineAlbum("Stale", "Stale", 1, 1))
	target.Folder.AddSubFolder(photomodel.NewFolder("OldTrip", "OldTrip"))

	e := New(d, Policy{Action: ActionDownload, DeleteOnDisk: true}, nil)
	e.Run(context.Background(), source, target)

	require.NoError(t, d.Join(context.Background()))
	assert.Equal(t, []string{"Stale"}, deletedAlbums)
	assert.Equal(t, []string{"OldTrip"}, deletedFolders)
}

func TestWalkFolder_NoDeleteEventsWhenNotPermitted(t *testing.T) {
	t.Parallel()

	d := dispatcher.New(nil)

	fired := false
	d.Subscribe(dispatcher.KindAlbumDelete, func(_ context.Context, _ any, _ bool) error {
		fired = true
		return nil
	})

	source := photomodel.NewRootFolder()

	target := photomodel.NewRootFolder()
	target.Folder.AddAlbum(newOnlineAlbum("Stale", "Stale", 1, 1))

	e := New(d, Policy{Action: ActionDownload}, nil)
	e.Run(context.Background(), source, target)

	require.NoError(t, d.Join(context.Background()))
	assert.False(t, fired)
}

func TestImagesAreTheSame(t *testing.T) {
	t.Parallel()

	base := &photomodel.Image{AlbumRelativePath: "Vacation", Filename: "a.jpg"}

	tests := []struct {
		name string
		disk *photomodel.Image
		onln *photomodel.Image
		want bool
	}{
		{
			name: "different identity never matches",
			disk: &photomodel.Image{AlbumRelativePath: "Vacation", Filename: "a.jpg"},
			onln: &photomodel.Image{AlbumRelativePath: "Vacation", Filename: "b.jpg"},
			want: false,
		},
		{
			name: "same identity, no size data available, treated as same",
			disk: base,
			onln: base,
			want: true,
		},
		{
			name: "same identity, matching size",
			disk: &photomodel.Image{AlbumRelativePath: "Vacation", Filename: "a.jpg", Disk: &photomodel.DiskInfo{Size: 100}},
			onln: &photomodel.Image{AlbumRelativePath: "Vacation", Filename: "a.jpg", Online: &photomodel.OnlineInfo{Size: 100}},
			want: true,
		},
		{
			name: "same identity, differing size",
			disk: &photomodel.Image{AlbumRelativePath: "Vacation", Filename: "a.jpg", Disk: &photomodel.DiskInfo{Size: 100}},
			onln: &photomodel.Image{AlbumRelativePath: "Vacation", Filename: "a.jpg", Online: &photomodel.OnlineInfo{Size: 200}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, imagesAreTheSame(tt.disk, tt.onln))
		})
	}
}
