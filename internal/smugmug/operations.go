package smugmug

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // required by the service's Content-MD5 header, not for security
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// nodeCreationDelay is the eventual-consistency pause spec.md §6.1 requires
// between creating an album node and reading it back.
const nodeCreationDelay = 500 * time.Millisecond

// RootFolderURI returns the authenticated nickname's root folder URI
// (GET user/<nickname> → Response.User.Uris.Folder.Uri per spec.md §6.1).
//
// Note: the service's own envelope nests this one level deeper
// (Response.User), which User already models.
func (c *Client) RootFolderURI(ctx context.Context, nickname string) (string, error) {
	var user User
	if err := c.Get(ctx, "/user/"+url.PathEscape(nickname), &user); err != nil {
		return "", fmt.Errorf("smugmug: fetching root folder for %s: %w", nickname, err)
	}

	return user.Uris.Folder.URI, nil
}

// GetFolder fetches a folder record by URI.
func (c *Client) GetFolder(ctx context.Context, uri string) (*Folder, error) {
	var f Folder
	if err := c.GetAbsolute(ctx, uri, &f); err != nil {
		return nil, fmt.Errorf("smugmug: fetching folder %s: %w", uri, err)
	}

	return &f, nil
}

// GetAlbum fetches an album record by URI, used to pick up a fresh
// LastUpdated after an ALBUM_SYNC handler has mutated the album's images
// (spec.md §4.6b).
func (c *Client) GetAlbum(ctx context.Context, uri string) (*Album, error) {
	var a Album
	if err := c.GetAbsolute(ctx, uri, &a); err != nil {
		return nil, fmt.Errorf("smugmug: fetching album %s: %w", uri, err)
	}

	return &a, nil
}

// ListSubFolders pages through a folder's sub-folders URI.
func (c *Client) ListSubFolders(ctx context.Context, subFoldersURI string) ([]Folder, error) {
	var out []Folder

	err := paginate(ctx, func(ctx context.Context, start, count int) (int, int, error) {
		var page FolderList
		if err := c.GetAbsolute(ctx, withPaging(subFoldersURI, start, count), &page); err != nil {
			return 0, 0, err
		}

		out = append(out, page.Folder...)

		return len(page.Folder), page.Pages.Total, nil
	})

	return out, err
}

// ListAlbums pages through a folder's albums URI.
func (c *Client) ListAlbums(ctx context.Context, albumsURI string) ([]Album, error) {
	var out []Album

	err := paginate(ctx, func(ctx context.Context, start, count int) (int, int, error) {
		var page AlbumList
		if err := c.GetAbsolute(ctx, withPaging(albumsURI, start, count), &page); err != nil {
			return 0, 0, err
		}

		out = append(out, page.Album...)

		return len(page.Album), page.Pages.Total, nil
	})

	return out, err
}

// ListImages pages through an album's images URI, excluding any image
// still Processing (spec.md §6.1: such images "must be excluded from
// comparisons").
func (c *Client) ListImages(ctx context.Context, imagesURI string) ([]Image, error) {
	var out []Image

	err := paginate(ctx, func(ctx context.Context, start, count int) (int, int, error) {
		var page ImageList
		if err := c.GetAbsolute(ctx, withPaging(imagesURI, start, count), &page); err != nil {
			return 0, 0, err
		}

		for _, img := range page.AlbumImage {
			if !img.Processing {
				out = append(out, img)
			}
		}

		return len(page.AlbumImage), page.Pages.Total, nil
	})

	return out, err
}

// LargestVideoURL fetches the download URL for a video image (spec.md
// §6.1's second round-trip: the archived original is photo-only).
func (c *Client) LargestVideoURL(ctx context.Context, largestVideoURI string) (string, error) {
	var v LargestVideo
	if err := c.GetAbsolute(ctx, largestVideoURI, &v); err != nil {
		return "", fmt.Errorf("smugmug: fetching largest video: %w", err)
	}

	return v.URL, nil
}

// CreateFolder creates a sub-folder under parentFoldersURI
// (POST to Uris.Folders with {Name, UrlName, Privacy: "Unlisted"}).
func (c *Client) CreateFolder(ctx context.Context, parentFoldersURI, name string) (*Folder, error) {
	body := map[string]string{
		"Name":    name,
		"UrlName": EncodeURLName(name),
		"Privacy": "Unlisted",
	}

	var f Folder
	if err := c.PostAbsolute(ctx, parentFoldersURI, body, &f); err != nil {
		return nil, fmt.Errorf("smugmug: creating folder %q: %w", name, err)
	}

	return &f, nil
}

// CreateAlbum implements the album-creation workaround from spec.md §6.1:
// POST to <Node.Uri>!children with {Name, Type: "Album"}, wait for
// eventual consistency, then GET the resulting node's Album URI.
func (c *Client) CreateAlbum(ctx context.Context, parentNodeURI, name string) (*Album, error) {
	body := map[string]string{
		"Name": name,
		"Type": "Album",
	}

	var node Node
	if err := c.PostAbsolute(ctx, parentNodeURI+"!children", body, &node); err != nil {
		return nil, fmt.Errorf("smugmug: creating album node %q: %w", name, err)
	}

	select {
	case <-time.After(nodeCreationDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var album Album
	if err := c.GetAbsolute(ctx, node.Uris.Album.URI, &album); err != nil {
		return nil, fmt.Errorf("smugmug: fetching newly created album %q: %w", name, err)
	}

	return &album, nil
}

// DeleteEntity issues HTTP DELETE on an entity URI (spec.md §6.1).
func (c *Client) DeleteEntity(ctx context.Context, uri string) error {
	if err := c.Delete(ctx, uri); err != nil {
		return fmt.Errorf("smugmug: deleting %s: %w", uri, err)
	}

	return nil
}

// UploadImage implements the multipart upload primitive from spec.md
// §4.6a/§6.1: POST to UploadURL with the listed X-Smug-* headers and a
// hex-MD5 Content-MD5 computed over the raw body before signing.
// replaceImageURI, when non-empty, sets the "replace this image" header.
func (c *Client) UploadImage(ctx context.Context, albumURI, diskPath, caption string, keywords []string, replaceImageURI string) (*UploadResponse, error) {
	fileData, err := os.ReadFile(diskPath)
	if err != nil {
		return nil, fmt.Errorf("smugmug: reading %s: %w", diskPath, err)
	}

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName(diskPath))
	if err != nil {
		return nil, fmt.Errorf("smugmug: building multipart body: %w", err)
	}

	if _, err := part.Write(fileData); err != nil {
		return nil, fmt.Errorf("smugmug: writing multipart body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("smugmug: closing multipart body: %w", err)
	}

	sum := md5.Sum(buf.Bytes()) //nolint:gosec // Content-MD5 is a protocol requirement, not a security hash

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("smugmug: building upload request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Smug-AlbumUri", albumURI)
	req.Header.Set("X-Smug-Title", fileName(diskPath))
	req.Header.Set("X-Smug-Caption", caption)
	req.Header.Set("X-Smug-Keywords", strings.Join(keywords, ";"))
	req.Header.Set("X-Smug-ResponseType", "JSON")
	req.Header.Set("X-Smug-Version", "v2")
	req.Header.Set("Content-MD5", hex.EncodeToString(sum[:]))

	if replaceImageURI != "" {
		req.Header.Set("X-Smug-ImageUri", replaceImageURI)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smugmug: uploading %s: %w", diskPath, err)
	}

	defer resp.Body.Close()

	var uploadResp UploadResponse
	if err := jsonDecode(resp.Body, &uploadResp); err != nil {
		return nil, fmt.Errorf("smugmug: decoding upload response for %s: %w", diskPath, err)
	}

	if uploadResp.Stat == "fail" {
		return nil, fmt.Errorf("smugmug: upload of %s failed (stat=fail)", diskPath)
	}

	return &uploadResp, nil
}

// DownloadTo streams downloadURI to a ".tmp" sibling of destPath and
// renames it into place atomically, so a crashed run is idempotent on
// retry (spec.md §4.6a).
func (c *Client) DownloadTo(ctx context.Context, downloadURI, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURI, nil)
	if err != nil {
		return fmt.Errorf("smugmug: building download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("smugmug: downloading %s: %w", downloadURI, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: downloadURI}
	}

	tmpPath := destPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("smugmug: creating %s: %w", tmpPath, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("smugmug: writing %s: %w", tmpPath, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("smugmug: closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("smugmug: renaming %s to %s: %w", tmpPath, destPath, err)
	}

	return nil
}

func withPaging(uri string, start, count int) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}

	return uri + sep + "start=" + strconv.Itoa(start) + "&count=" + strconv.Itoa(count)
}

func fileName(diskPath string) string {
	idx := strings.LastIndexByte(diskPath, '/')
	if idx < 0 {
		return diskPath
	}

	return diskPath[idx+1:]
}

func jsonDecode(r io.Reader, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}
