package synctriplet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophirh/smugmug-sync/internal/photomodel"
)

func TestLoad_MissingFileIsNeverSynced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	triplet := Load(dir, nil)
	assert.False(t, triplet.Valid)
}

func TestLoad_MalformedJSONResetsState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	triplet := Load(dir, nil)
	assert.False(t, triplet.Valid)

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRememberSyncAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	onlineTime := 1700000000.0

	require.NoError(t, RememberSync(dir, &onlineTime, nil))

	triplet := Load(dir, nil)
	require.True(t, triplet.Valid)
	assert.Equal(t, onlineTime, triplet.OnlineTime)
	assert.Greater(t, triplet.SyncTime, 0.0)
}

func TestRememberSync_NilOnlineTimeDeletesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	onlineTime := 1700000000.0
	require.NoError(t, RememberSync(dir, &onlineTime, nil))

	require.NoError(t, RememberSync(dir, nil, nil))

	_, err := os.Stat(filepath.Join(dir, FileName))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAlreadySynced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mtime := time.Now()
	require.NoError(t, os.Chtimes(dir, mtime, mtime))

	triplet := photomodel.SyncTriplet{
		OnlineTime: 1000,
		DiskTime:   float64(mtime.Unix()),
		Valid:      true,
	}

	// Exact match: synced.
	assert.True(t, AlreadySynced(triplet, 1000, dir, false))

	// Within Delta: still synced.
	assert.True(t, AlreadySynced(triplet, 1000+Delta, dir, false))

	// One second past Delta: no longer synced.
	assert.False(t, AlreadySynced(triplet, 1000+Delta+1, dir, false))

	// force=true always reports unsynced.
	assert.False(t, AlreadySynced(triplet, 1000, dir, true))
}

func TestAlreadySynced_NeverSyncedIsAlwaysDivergent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.False(t, AlreadySynced(Load(dir, nil), 1000, dir, false))
}
