package remotescan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophirh/smugmug-sync/internal/smugmug"
)

// fakeAPI serves a small, fixed folder tree:
//
//	root
//	├── Album "Vacation" (2 images)
//	└── Folder "Trips"
//	    └── Album "Summer" (1 image)
type fakeAPI struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeAPI) record(path string) {
	f.mu.Lock()
	f.requests = append(f.requests, path)
	f.mu.Unlock()
}

func newFakeServer(t *testing.T, f *fakeAPI) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/folder/root", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.URL.Path)
		writeEnvelope(w, `{
			"Uri": "/folder/root",
			"Name": "root",
			"Uris": {
				"Folders": {"Uri": "/folder/root/subfolders"},
				"FolderAlbums": {"Uri": "/folder/root/albums"},
				"Node": {"Uri": "/node/root"}
			}
		}`)
	})

	mux.HandleFunc("/folder/root/subfolders", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.URL.Path)
		writeEnvelope(w, `{
			"Folder": [
				{
					"Uri": "/folder/trips",
					"Name": "Trips",
					"Uris": {
						"Folders": {"Uri": "/folder/trips/subfolders"},
						"FolderAlbums": {"Uri": "/folder/trips/albums"},
						"Node": {"Uri": "/node/trips"}
					}
				}
			],
			"Pages": {"Total": 1}
		}`)
	})

	mux.HandleFunc("/folder/root/albums", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.URL.Path)
		writeEnvelope(w, `{
			"Album": [
				{
					"Uri": "/album/vacation",
					"Name": "Vacation",
					"ImageCount": 2,
					"LastUpdated": "2024-06-01T10:00:00+00:00",
					"Uris": {"AlbumImages": {"Uri": "/album/vacation/images"}}
				}
			],
			"Pages": {"Total": 1}
		}`)
	})

	mux.HandleFunc("/folder/trips/subfolders", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.URL.Path)
		writeEnvelope(w, `{"Folder": [], "Pages": {"Total": 0}}`)
	})

	mux.HandleFunc("/folder/trips/albums", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.URL.Path)
		writeEnvelope(w, `{
			"Album": [
				{
					"Uri": "/album/summer",
					"Name": "Summer",
					"ImageCount": 1,
					"LastUpdated": "2024-07-01T10:00:00+00:00",
					"Uris": {"AlbumImages": {"Uri": "/album/summer/images"}}
				}
			],
			"Pages": {"Total": 1}
		}`)
	})

	mux.HandleFunc("/album/vacation/images", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.URL.Path)
		writeEnvelope(w, `{
			"AlbumImage": [
				{"FileName": "a.jpg", "Uri": "/image/a", "OriginalSize": 100},
				{"FileName": "b.jpg", "Uri": "/image/b", "OriginalSize": 200, "Processing": true}
			],
			"Pages": {"Total": 2}
		}`)
	})

	return httptest.NewServer(mux)
}

func writeEnvelope(w http.ResponseWriter, response string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"Response":%s,"Code":200}`, response)
}

func TestScan_BuildsFullTree(t *testing.T) {
	t.Parallel()

	f := &fakeAPI{}
	srv := newFakeServer(t, f)
	defer srv.Close()

	client := smugmug.NewClientForTesting(smugmug.Credentials{
		ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessTokenSecret: "ats",
	}, srv.URL, srv.URL+"/upload", nil)

	scanner := New(client, "", nil)

	root, err := scanner.Scan(context.Background(), srv.URL+"/folder/root")
	require.NoError(t, err)

	_, ok := root.Album("Vacation")
	assert.True(t, ok)

	trips, ok := root.SubFolder("Trips")
	require.True(t, ok)

	summer, ok := trips.Album("Summer")
	require.True(t, ok)
	assert.Equal(t, 1, summer.ImageCount)

	folders, albums, images := root.Stats.Snapshot()
	assert.Equal(t, 1, folders)
	assert.Equal(t, 2, albums)
	assert.Equal(t, 3, images)
}

func TestScan_SkipsDesignatedTestFolder(t *testing.T) {
	t.Parallel()

	f := &fakeAPI{}
	srv := newFakeServer(t, f)
	defer srv.Close()

	client := smugmug.NewClientForTesting(smugmug.Credentials{
		ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessTokenSecret: "ats",
	}, srv.URL, srv.URL+"/upload", nil)

	scanner := New(client, "/node/trips", nil)

	root, err := scanner.Scan(context.Background(), srv.URL+"/folder/root")
	require.NoError(t, err)

	_, ok := root.SubFolder("Trips")
	assert.False(t, ok, "the designated test-folder node must never be recursed into")
}

func TestLoadImages_ExcludesProcessingImages(t *testing.T) {
	t.Parallel()

	f := &fakeAPI{}
	srv := newFakeServer(t, f)
	defer srv.Close()

	client := smugmug.NewClientForTesting(smugmug.Credentials{
		ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessTokenSecret: "ats",
	}, srv.URL, srv.URL+"/upload", nil)

	scanner := New(client, "", nil)

	root, err := scanner.Scan(context.Background(), srv.URL+"/folder/root")
	require.NoError(t, err)

	album, ok := root.Album("Vacation")
	require.True(t, ok)
	assert.True(t, album.RequiresImageLoad())

	require.NoError(t, scanner.LoadImages(context.Background(), album))
	assert.False(t, album.RequiresImageLoad())

	imgs := album.Images()
	require.Len(t, imgs, 1)
	assert.Equal(t, "a.jpg", imgs[0].Filename)
}
