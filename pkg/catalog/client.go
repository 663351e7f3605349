package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tablescope/tablescope/pkg/cache"
	"github.com/tablescope/tablescope/pkg/errors"
	"github.com/tablescope/tablescope/pkg/httputil"
	"github.com/tablescope/tablescope/pkg/observability"
)

const httpTimeout = 10 * time.Second

// StatusError is an unexpected HTTP status from the catalog.
type StatusError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("catalog returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("catalog returned status %d", e.Status)
}

// Config configures a catalog client.
type Config struct {
	// BaseURL is the catalog root, e.g. "https://catalog.example.com".
	BaseURL string

	// Token is an optional bearer token for authenticated catalogs.
	Token string

	// Cache is an optional backend for lineage response caching.
	// Nil disables caching.
	Cache cache.Cache

	// CacheTTL overrides the default lineage TTL. 0 means cache.TTLLineage.
	CacheTTL time.Duration

	// Keyer overrides the cache key schema. Nil means cache.NewDefaultKeyer.
	Keyer cache.Keyer

	Logger *log.Logger
}

// Client talks to the catalog lineage API. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	cache    cache.Cache
	cacheTTL time.Duration
	keyer    cache.Keyer
	logger   *log.Logger
}

// New creates a catalog client from the given config.
func New(cfg Config) (*Client, error) {
	if err := errors.ValidateURL(cfg.BaseURL); err != nil {
		return nil, err
	}
	if cfg.Keyer == nil {
		cfg.Keyer = cache.NewDefaultKeyer()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.TTLLineage
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Client{
		http:     &http.Client{Timeout: httpTimeout},
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		token:    cfg.Token,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		keyer:    cfg.Keyer,
		logger:   cfg.Logger,
	}, nil
}

// get performs a GET request against the catalog and decodes the JSON
// response into v. Transient failures are retried with backoff.
func (c *Client) get(ctx context.Context, path string, v any) error {
	url := c.baseURL + path
	return httputil.RetryWithBackoff(ctx, func() error {
		body, err := c.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "decode catalog response")
		}
		return nil
	})
}

// put performs a PUT request with a JSON body, discarding the response.
func (c *Client) put(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode catalog request")
	}
	url := c.baseURL + path
	body, err := c.do(ctx, http.MethodPut, url, data)
	if err != nil {
		return err
	}
	defer body.Close()
	_, _ = io.Copy(io.Discard, body)
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) (io.ReadCloser, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	observability.HTTP().OnRequest(ctx, method, req.URL.Host, req.URL.Path)
	resp, err := c.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, method, req.URL.Host, req.URL.Path, err)
		return nil, &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "catalog request failed")}
	}
	observability.HTTP().OnResponse(ctx, method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeEntityNotFound, "entity not found in catalog")
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &httputil.RetryableError{Err: &errors.RateLimitedError{RetryAfter: retryAfter}}
	case code >= 500:
		return &httputil.RetryableError{Err: &StatusError{Status: code}}
	default:
		return &StatusError{Status: code}
	}
}
