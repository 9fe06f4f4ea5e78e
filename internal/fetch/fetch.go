// Package fetch downloads calendar source documents over HTTP with retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// maxBodyBytes caps how much of a response is read; soup calendars are a
// page or two.
const maxBodyBytes = 25 << 20

// Document is a fetched source document.
type Document struct {
	URL         string
	ContentType string
	Body        []byte
}

// FetchError is returned when a document could not be downloaded, either
// because the request failed or the server answered with a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Permanent reports whether retrying cannot help: the server rejected the
// request itself.
func (e *FetchError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// IsFetchError reports whether err is a FetchError and returns it.
func IsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Config tunes the retry loop.
type Config struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
	Timeout  time.Duration
}

// DefaultConfig is what the service uses outside tests.
var DefaultConfig = Config{
	Attempts: 5,
	Delay:    time.Second,
	MaxDelay: 30 * time.Second,
	Timeout:  30 * time.Second,
}

// Client fetches documents.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch downloads url. Network errors and 5xx responses are retried; 4xx
// responses fail immediately.
func (c *Client) Fetch(ctx context.Context, url string) (*Document, error) {
	var doc *Document
	err := retry.Do(
		func() error {
			c.logger.Info("HTTP request starting", "method", http.MethodGet, "url", url)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(&FetchError{URL: url, Err: err})
			}
			req.Header.Set("User-Agent", "soupcal/1.0")

			start := time.Now()
			resp, err := c.http.Do(req)
			duration := time.Since(start)
			if err != nil {
				c.logger.Warn("HTTP request failed", "url", url, "duration_ms", duration.Milliseconds(), "error", err)
				return &FetchError{URL: url, Err: err}
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			c.logger.Info("HTTP request completed",
				"url", url,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return &FetchError{URL: url, StatusCode: resp.StatusCode}
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
			}
			doc = &Document{URL: url, ContentType: resp.Header.Get("Content-Type"), Body: body}
			return nil
		},
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.Delay),
		retry.MaxDelay(c.cfg.MaxDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying fetch after error", "attempt", n, "url", url, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			fe, ok := IsFetchError(err)
			return !ok || !fe.Permanent()
		}),
	)
	if err != nil {
		if _, ok := IsFetchError(err); ok {
			return nil, err
		}
		return nil, &FetchError{URL: url, Err: err}
	}
	return doc, nil
}
