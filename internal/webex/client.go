// Package webex is a small client for the Webex REST API.
package webex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/transport"
)

const (
	defaultBaseURL = "https://webexapis.com/v1"
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxPages       = 50
)

// Client calls the Webex API with a bearer token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient creates a Webex client. An empty baseURL uses the public API.
func NewClient(token, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(transport.Options{})
	}
	return &Client{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		backoff:    initialBackoff,
		logger:     slog.Default(),
	}
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	retryAfter time.Duration
	err        *envelope.VendorError
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", http.StatusTooManyRequests)
}

func (e *rateLimitError) Unwrap() error { return e.err }

// do sends one request, retrying on 429. rawURL may be a path relative to the
// base URL or an absolute pagination link. The response headers are returned
// for Link handling.
func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) (http.Header, error) {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
	}
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = c.baseURL + rawURL
	}

	var lastErr error
	for attempt := range maxAttempts {
		h, err := c.doOnce(ctx, method, rawURL, body, out)
		if err == nil {
			return h, nil
		}

		var rl *rateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}

		lastErr = err
		if attempt < maxAttempts-1 {
			wait := rl.retryAfter
			if wait <= 0 {
				wait = time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			}
			c.logger.Warn("webex rate limited", "url", rawURL, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return nil, fmt.Errorf("webex: rate limited after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, body []byte, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webex %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := transport.ReadBody(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("webex request", "method", method, "url", rawURL, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			err:        envelope.ParseError(envelope.Webex, resp.StatusCode, data),
		}
	}
	if !transport.OK(resp.StatusCode) {
		return nil, fmt.Errorf("webex %s %s: %w", method, req.URL.Path, envelope.ParseError(envelope.Webex, resp.StatusCode, data))
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("webex %s %s: decoding response: %w", method, req.URL.Path, err)
		}
	}
	return resp.Header, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// nextLink extracts the rel="next" target from a Link header.
func nextLink(h http.Header) string {
	for _, link := range h.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			segs := strings.Split(part, ";")
			if len(segs) < 2 {
				continue
			}
			target := strings.Trim(strings.TrimSpace(segs[0]), "<>")
			for _, s := range segs[1:] {
				if strings.ReplaceAll(strings.TrimSpace(s), `"`, "") == "rel=next" {
					return target
				}
			}
		}
	}
	return ""
}

// listAll follows Link rel="next" pages and concatenates their items. limit
// caps the number of items returned when positive.
func listAll[T any](ctx context.Context, c *Client, path string, q url.Values, limit int) ([]T, error) {
	next := path
	if len(q) > 0 {
		next += "?" + q.Encode()
	}
	items := []T{}
	for page := 0; next != "" && page < maxPages; page++ {
		var out struct {
			Items []T `json:"items"`
		}
		h, err := c.do(ctx, http.MethodGet, next, nil, &out)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
		next = nextLink(h)
	}
	return items, nil
}
