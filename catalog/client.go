package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second

	// DefaultRequestsPerSecond keeps the client polite toward public
	// registries.
	DefaultRequestsPerSecond = 10
)

// Client fetches package and score documents from a package registry.
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string

	// Cache for registry documents
	packageCache sync.Map // map[string]*Package keyed by package name
	scoreCache   sync.Map // map[string]*Score keyed by package name
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets a custom HTTP request timeout.
// Zero or negative values fall back to the default timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		} else {
			c.client.Timeout = DefaultRequestTimeout
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative
// values disable the limiter.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the given registry URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		limiter:   rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		userAgent: "depadvise",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the registry base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetPackage fetches a package document. Results are cached by package
// name for the lifetime of the client.
func (c *Client) GetPackage(ctx context.Context, name string) (*Package, error) {
	if cached, ok := c.packageCache.Load(name); ok {
		return cached.(*Package), nil
	}

	url := fmt.Sprintf("%s/api/packages/%s", c.baseURL, name)
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch package %s: %w", name, err)
	}

	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package %s: %w", name, err)
	}

	c.packageCache.Store(name, &pkg)
	return &pkg, nil
}

// GetScore fetches a package's popularity document. Results are cached
// by package name. Registries without score endpoints yield a zero
// Score rather than an error.
func (c *Client) GetScore(ctx context.Context, name string) (*Score, error) {
	if cached, ok := c.scoreCache.Load(name); ok {
		return cached.(*Score), nil
	}

	url := fmt.Sprintf("%s/api/packages/%s/score", c.baseURL, name)
	data, err := c.fetch(ctx, url)
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.NotFound() {
			score := &Score{}
			c.scoreCache.Store(name, score)
			return score, nil
		}
		return nil, fmt.Errorf("failed to fetch score for %s: %w", name, err)
	}

	var score Score
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, fmt.Errorf("failed to parse score for %s: %w", name, err)
	}

	c.scoreCache.Store(name, &score)
	return &score, nil
}

// ClearCache removes all cached documents.
func (c *Client) ClearCache() {
	c.packageCache = sync.Map{}
	c.scoreCache = sync.Map{}
}

// fetch performs an HTTP GET and returns the response body.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	return io.ReadAll(resp.Body)
}

// StatusError reports a non-200 registry response.
type StatusError struct {
	// StatusCode is the HTTP status returned by the registry.
	StatusCode int

	// URL is the request URL that failed.
	URL string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// NotFound reports whether the response was a 404.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
