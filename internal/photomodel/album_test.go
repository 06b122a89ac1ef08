package photomodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesAlbumDatePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		album  string
		want   bool
		isDate bool // expected IsDateOnlyAlbumName
	}{
		{"date only", "2023_07_01", true, true},
		{"date with suffix", "2023_07_01 - Trip to Paris", true, false},
		{"not a date", "Miscellaneous", false, false},
		{"missing separator before suffix", "2023_07_01Trip", false, false},
		{"wrong digit grouping", "23_07_01", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesAlbumDatePattern(tt.album))

			if tt.want {
				assert.Equal(t, tt.isDate, IsDateOnlyAlbumName(tt.album))
			}
		})
	}
}

func TestAlbumImagesLifecycle(t *testing.T) {
	t.Parallel()

	a := &Album{Name: "B", RelativePath: "A/B"}
	assert.True(t, a.RequiresImageLoad())

	imgs := []*Image{
		{AlbumRelativePath: "A/B", Filename: "z.jpg"},
		{AlbumRelativePath: "A/B", Filename: "a.jpg"},
	}
	a.SetImages(imgs)

	assert.False(t, a.RequiresImageLoad())
	assert.Equal(t, 2, a.ImageCount)

	sorted := a.SortedImagesByRelativePath()
	assert.Equal(t, "A/B/a.jpg", sorted[0].RelativePath())
	assert.Equal(t, "A/B/z.jpg", sorted[1].RelativePath())

	a.ResetImages()
	assert.True(t, a.RequiresImageLoad())
	assert.Nil(t, a.Images())
}

func TestAlbumOnDiskOnLine(t *testing.T) {
	t.Parallel()

	a := &Album{Name: "B", RelativePath: "A/B"}
	assert.True(t, a.NeedsSync())

	a.Disk = &AlbumDiskInfo{Path: "/tmp/A/B"}
	assert.True(t, a.NeedsSync())

	a.Online = &AlbumOnlineInfo{URI: "/album/1"}
	assert.False(t, a.NeedsSync())
}
