package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/discrapp/discr-site/internal/cache"
)

const (
	// DefaultUserAgent identifies the site's scraper to the campaign host.
	DefaultUserAgent = "Mozilla/5.0 (compatible; DiscrBot/1.0; +https://discrapp.com)"
	// DefaultTTL is how long a cached page is served without revalidation.
	DefaultTTL = 600 * time.Second

	defaultAccept       = "text/html"
	defaultMaxBodyBytes = 16 << 20
)

// ErrBodyTooLarge is returned when a page exceeds Client.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Response is a fetched page body.
type Response struct {
	Body        []byte
	ContentType string
	// FromCache is set when the body was served by the cache, either fresh
	// or after a 304 revalidation.
	FromCache bool
}

// Client wraps http.Client with a fixed identity, a per-request timeout and
// an optional response cache. It never retries.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// Accept defaults to text/html.
	Accept string
	// PerRequestTimeout bounds each request. Zero leaves only ctx in charge.
	PerRequestTimeout time.Duration
	// Cache, when set, serves entries younger than TTL without a request and
	// revalidates older ones with If-None-Match / If-Modified-Since.
	Cache cache.Store
	TTL   time.Duration
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxBodyBytes rejects larger bodies with ErrBodyTooLarge. Zero means 16 MiB.
	MaxBodyBytes int64
	// Limiter, when set, spaces out network requests. Cache hits bypass it.
	Limiter *rate.Limiter

	now func() time.Time
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UTC()
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

// Get fetches rawURL, consulting the cache first when one is configured.
// Non-2xx responses return a *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}

	cached := c.loadCached(ctx, rawURL)
	if cached.Fresh(c.clock(), c.TTL) {
		log.Debug().Str("url", rawURL).Msg("serving page from cache")
		return &Response{Body: cached.Body, ContentType: cached.ContentType, FromCache: true}, nil
	}

	var validator *cache.Entry
	if cached.Revalidatable() {
		validator = cached
	}
	resp, err := c.do(ctx, rawURL, validator)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && validator != nil {
		validator.SavedAt = c.clock()
		c.store(ctx, validator)
		return &Response{Body: validator.Body, ContentType: validator.ContentType, FromCache: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit)
	}
	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusOK {
		c.store(ctx, &cache.Entry{
			URL:          rawURL,
			ContentType:  contentType,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			SavedAt:      c.clock(),
			Body:         body,
		})
	}
	return &Response{Body: body, ContentType: contentType}, nil
}

func (c *Client) do(ctx context.Context, rawURL string, validator *cache.Entry) (*http.Response, error) {
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		// The body is read by the caller; cancel once it is closed.
		resp, err := c.limitedSend(ctx, rawURL, validator)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.limitedSend(ctx, rawURL, validator)
}

// limitedSend holds the request until the limiter admits it. The wait counts
// against the request deadline.
func (c *Client) limitedSend(ctx context.Context, rawURL string, validator *cache.Entry) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	return c.send(ctx, rawURL, validator)
}

func (c *Client) send(ctx context.Context, rawURL string, validator *cache.Entry) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	accept := c.Accept
	if accept == "" {
		accept = defaultAccept
	}
	req.Header.Set("Accept", accept)
	if validator != nil {
		if validator.ETag != "" {
			req.Header.Set("If-None-Match", validator.ETag)
		}
		if validator.LastModified != "" {
			req.Header.Set("If-Modified-Since", validator.LastModified)
		}
	}
	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	return resp, nil
}

// loadCached returns nil on a miss. Cache failures never fail a fetch.
func (c *Client) loadCached(ctx context.Context, rawURL string) *cache.Entry {
	if c.Cache == nil {
		return nil
	}
	e, err := c.Cache.Load(ctx, rawURL)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("url", rawURL).Msg("cache load failed")
		}
		return nil
	}
	return e
}

func (c *Client) store(ctx context.Context, e *cache.Entry) {
	if c.Cache == nil {
		return
	}
	if err := c.Cache.Save(ctx, e); err != nil {
		log.Warn().Err(err).Str("url", e.URL).Msg("cache save failed")
	}
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
