// Package meta provides a thin client for the Meta Marketing (Graph) API.
// It performs single authenticated GETs and surfaces the HTTP status and
// upstream error message; retry and rate-limit handling belong to callers.
package meta

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"context"

	"github.com/rotisserie/eris"
)

// Client defines the Graph API operations used by the pipeline.
type Client interface {
	// Get issues one authenticated GET against the given path (for example
	// "act_123/insights") and returns the raw body and HTTP status.
	Get(ctx context.Context, path string, params url.Values) ([]byte, int, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithVersion sets the API version segment.
func WithVersion(v string) Option {
	return func(c *httpClient) { c.version = v }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.http.Timeout = d }
}

type httpClient struct {
	token   string
	baseURL string
	version string
	http    *http.Client
}

// NewClient creates a Graph API client authenticated with the access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://graph.facebook.com",
		version: "v21.0",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("access_token", c.token)

	reqURL := fmt.Sprintf("%s/%s/%s?%s",
		strings.TrimSuffix(c.baseURL, "/"),
		c.version,
		strings.TrimPrefix(path, "/"),
		q.Encode(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "meta: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "meta: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "meta: read response body")
	}

	return body, resp.StatusCode, nil
}
