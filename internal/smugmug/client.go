// Package smugmug implements the OAuth1-signed HTTP client for the
// service's API described in spec.md §6.1. It is the sole collaborator
// the rest of the system uses to talk to the network: remotescan paginates
// through it, handlers call its mutating endpoints, and it owns the
// transient-error retry policy (spec.md §4.7/§6.1).
package smugmug

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/sethvargo/go-retry"
)

// BaseURL is the production SmugMug API v2 endpoint (spec.md §6.1).
const BaseURL = "https://api.smugmug.com/api/v2"

// UploadURL is the dedicated upload endpoint — distinct from BaseURL.
const UploadURL = "https://upload.smugmug.com/"

// requestTimeout is the per-request HTTP timeout (spec.md §5). It is set
// on the Client's single signed http.Client, so it applies to every call,
// uploads and downloads included; transfers have no separate client or
// longer limit.
const requestTimeout = 10 * time.Second

// maxRetries and the linear backoff schedule implement spec.md §4.7/§6.1:
// retry 1 at 1s, retry 2 at 2s, retry 3 at 3s.
const maxRetries = 3

// Credentials bundles the OAuth 1.0a consumer + access token pair
// required to sign requests (spec.md §6.1).
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Client is a signed HTTP client for the service's API.
type Client struct {
	baseURL    string
	uploadURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client signing every request with creds.
func NewClient(creds Credentials, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	httpClient := config.Client(context.Background(), token)
	httpClient.Timeout = requestTimeout

	return &Client{
		baseURL:    BaseURL,
		uploadURL:  UploadURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// NewClientForTesting builds a Client pointed at a fake server instead of
// the production endpoints, for tests that exercise the scan/reconcile/
// handler pipeline end to end without a live account (grounded in the
// teacher's testutil/testenv.go HTTP-fake-over-live-credential approach).
func NewClientForTesting(creds Credentials, baseURL, uploadURL string, logger *slog.Logger) *Client {
	c := NewClient(creds, logger)
	c.baseURL = baseURL
	c.uploadURL = uploadURL

	return c
}

// linearBackoff implements retry.Backoff for the 1s/2s/3s schedule
// required by spec.md §4.7 — go-retry ships exponential/fibonacci/constant
// backoffs but no linear one, so this is the minimal adapter.
type linearBackoff struct {
	attempt int
	step    time.Duration
	max     int
}

func newLinearBackoff(step time.Duration, max int) *linearBackoff {
	return &linearBackoff{step: step, max: max}
}

func (b *linearBackoff) Next() (time.Duration, bool) {
	b.attempt++
	if b.attempt > b.max {
		return 0, false
	}

	return b.step * time.Duration(b.attempt), true
}

// Envelope is the outer shape of every SmugMug API response; callers read
// the Response field via json.RawMessage and unmarshal into the concrete
// type they expect.
type Envelope struct {
	Response json.RawMessage `json:"Response"`
	Code     int             `json:"Code"`
	Message  string          `json:"Message"`
}

// Pages describes a paginated list response's pagination block.
type Pages struct {
	Total       int `json:"Total"`
	Start       int `json:"Start"`
	Count       int `json:"Count"`
	RequestedPage int `json:"RequestedPage"`
}

// pageSize is the max page size accepted by the service per spec.md §6.1.
const pageSize = 100

// Get performs a signed GET against BaseURL+path, retrying transient
// failures per spec.md §4.7, and decodes the Envelope.Response field
// into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, c.baseURL+path, nil, "", out)
}

// Post performs a signed POST with a JSON body against BaseURL+path.
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("smugmug: encoding request body: %w", err)
	}

	return c.do(ctx, http.MethodPost, c.baseURL+path, data, "application/json", out)
}

// Delete performs a signed DELETE against an absolute or server-relative
// entity URI, resolved the same way as for GetAbsolute.
func (c *Client) Delete(ctx context.Context, uri string) error {
	return c.do(ctx, http.MethodDelete, c.resolveURI(uri), nil, "", nil)
}

// GetAbsolute performs a signed GET against an absolute or server-relative
// URI returned by a previous response (e.g. Uris.Node.Uri), rather than a
// path relative to BaseURL.
func (c *Client) GetAbsolute(ctx context.Context, uri string, out any) error {
	return c.do(ctx, http.MethodGet, c.resolveURI(uri), nil, "", out)
}

// PostAbsolute performs a signed POST against an absolute or server-
// relative URI (used for the album-creation workaround: POST to
// <Node.Uri>!children, spec.md §6.1).
func (c *Client) PostAbsolute(ctx context.Context, uri string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("smugmug: encoding request body: %w", err)
	}

	return c.do(ctx, http.MethodPost, c.resolveURI(uri), data, "application/json", out)
}

func (c *Client) resolveURI(uri string) string {
	if len(uri) > 0 && uri[0] == '/' {
		if base, err := url.Parse(c.baseURL); err == nil && base.Host != "" {
			return base.Scheme + "://" + base.Host + uri
		}

		return "https://api.smugmug.com" + uri
	}

	return uri
}

// do executes one logical API call with the 3-retry linear-backoff policy.
// Non-2xx responses other than 5xx/network errors are not retried
// (spec.md §4.7: "any other status-code error is fatal").
func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string, out any) error {
	backoff := newLinearBackoff(time.Second, maxRetries)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytesReader(body))
		if err != nil {
			return fmt.Errorf("smugmug: building request: %w", err)
		}

		req.Header.Set("Host", "www.smugmug.com")
		req.Header.Set("Accept", "application/json")

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("smugmug: transport error, will retry",
				slog.String("method", method), slog.String("url", url), slog.String("error", err.Error()))

			return retry.RetryableError(fmt.Errorf("smugmug: %s %s: %w", method, url, err))
		}

		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("smugmug: reading response body: %w", readErr)
		}

		if resp.StatusCode >= 500 {
			c.logger.Warn("smugmug: server error, will retry",
				slog.String("method", method), slog.String("url", url), slog.Int("status", resp.StatusCode))

			return retry.RetryableError(fmt.Errorf("smugmug: %s %s: status %d", method, url, resp.StatusCode))
		}

		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		}

		if out == nil {
			return nil
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("smugmug: decoding envelope: %w", err)
		}

		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("smugmug: decoding response payload: %w", err)
		}

		return nil
	})
}

// APIError represents a 4xx "remote application error" (spec.md §7):
// not retried, raised straight to the calling handler.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smugmug: remote error %d: %s", e.StatusCode, e.Body)
}

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}

	return &byteReader{data: b}
}

// byteReader is a minimal io.Reader over a request body. do builds a fresh
// one for every attempt, so each retry resends the exact same bytes.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}

	n := copy(p, r.data[r.pos:])
	r.pos += n

	return n, nil
}
