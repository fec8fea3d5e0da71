// Package portal is a client for the Ditti research portal REST API.
package portal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/httpcache"
	"github.com/codeGROOVE-dev/retry"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 32 << 20

// App identifies which portal application a request is made for.
type App int

// Portal applications.
const (
	AppAdmin    App = 1
	AppTaps     App = 2
	AppWearable App = 3
)

func (a App) String() string {
	return fmt.Sprint(int(a))
}

// Client talks to the portal API. Every call takes a context; cancelling it
// aborts the request and any pending retries.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	cache      *httpcache.OtterCache
	baseURL    string
	token      string
	scope      string
	app        App
	attempts   uint
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCache caches GET responses. Successful writes clear the cache.
func WithCache(cache *httpcache.OtterCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithApp sets the application the admin tables and tasks are requested
// for. The default is AppAdmin.
func WithApp(app App) Option {
	return func(c *Client) {
		c.app = app
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryAttempts sets how many times a read is attempted.
func WithRetryAttempts(attempts uint) Option {
	return func(c *Client) {
		c.attempts = attempts
	}
}

// WithRetryDelay sets the initial backoff between attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
		app:        AppAdmin,
		attempts:   5,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts == 0 {
		c.attempts = 1
	}

	// Cache entries are partitioned by credential so researchers never see
	// each other's cached lists.
	sum := sha256.Sum256([]byte(c.token))
	c.scope = hex.EncodeToString(sum[:8])
	return c, nil
}

// APIError is a non-2xx response from the portal.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("portal returned HTTP %d: %s", e.Status, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		payload.Msg = ""
	}
	return &APIError{Status: status, Message: payload.Msg}
}

// GenericErrorMessage is shown when the portal gives no reason for a failure.
const GenericErrorMessage = "Internal server error"

// UserMessage returns the text to show a user for err: the portal's own
// message when it sent one, otherwise a generic one.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericErrorMessage
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get fetches path and decodes the JSON response into out, using the cache.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.url(path, query)
	key := httpcache.Key(c.scope, u, nil)

	if c.cache != nil {
		if entry, ok := c.cache.Get(key); ok {
			c.logger.Debug("cache hit", "url", u)
			if err := json.Unmarshal(entry.Data, out); err == nil {
				return nil
			}
			c.cache.Invalidate(key)
		}
	}

	body, header, err := c.send(ctx, http.MethodGet, u, nil, c.attempts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	if c.cache != nil {
		c.cache.Set(key, body, header.Get("ETag"))
	}
	return nil
}

// post sends payload as JSON. Writes are not retried since the portal does
// not make them idempotent.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	body, _, err := c.send(ctx, http.MethodPost, c.url(path, nil), data, 1)
	if err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Clear()
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// send performs a request with exponential backoff and jitter. Network
// errors, 429 and 5xx are retried; other statuses return immediately.
func (c *Client) send(ctx context.Context, method, u string, payload []byte, attempts uint) ([]byte, http.Header, error) {
	start := time.Now()
	var body []byte
	var header http.Header
	var lastErr error

	err := retry.Do(
		func() error {
			var reader io.Reader
			if payload != nil {
				reader = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, u, reader)
			if err != nil {
				lastErr = fmt.Errorf("creating request: %w", err)
				return retry.Unrecoverable(lastErr)
			}
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				if ctx.Err() != nil {
					return retry.Unrecoverable(err)
				}
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Debug("failed to close response body", "error", closeErr)
				}
			}()

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				lastErr = fmt.Errorf("reading response: %w", err)
				return lastErr
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				body, header = data, resp.Header
				return nil
			}

			apiErr := newAPIError(resp.StatusCode, data)
			lastErr = apiErr
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("retryable portal error", "method", method, "url", u, "status", resp.StatusCode)
				return apiErr
			}
			return retry.Unrecoverable(apiErr)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(2*time.Minute),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retrying portal request", "method", method, "url", u, "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("%s %s: %w", method, u, ctxErr)
		}
		if lastErr == nil {
			lastErr = err
		}
		c.logger.Debug("portal request failed", "method", method, "url", u, "error", lastErr, "duration", time.Since(start))
		return nil, nil, lastErr
	}

	c.logger.Debug("portal request completed", "method", method, "url", u, "duration", time.Since(start))
	return body, header, nil
}
