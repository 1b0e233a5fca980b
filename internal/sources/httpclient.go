package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/pkg/logger"
)

// ErrStatus wraps non-2xx responses
var ErrStatus = errors.New("unexpected status code")

// HTTPClient is the rate-limited, size-capped client shared by scrapers
type HTTPClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	userAgent  string
	sizeCap    int64
	retries    int
	retryDelay time.Duration
	logger     *logger.Logger
}

// NewHTTPClient creates a client from scraper configuration
func NewHTTPClient(cfg config.ScraperConfig, log *logger.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sizeCap := cfg.MaxBodyBytes
	if sizeCap <= 0 {
		sizeCap = 5 << 20
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		limiter:    rate.NewLimiter(limit, 1),
		userAgent:  cfg.UserAgent,
		sizeCap:    sizeCap,
		retries:    3,
		retryDelay: 2 * time.Second,
		logger:     log.WithComponent("scraper-http"),
	}
}

// WithRetry overrides the retry policy
func (h *HTTPClient) WithRetry(retries int, delay time.Duration) *HTTPClient {
	if retries < 1 {
		retries = 1
	}
	h.retries = retries
	h.retryDelay = delay
	return h
}

// Page is a fetched, UTF-8 decoded response body
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// GetPage fetches rawURL and decodes the body to UTF-8 using the declared
// or sniffed charset. Bodies beyond the size cap are truncated.
func (h *HTTPClient) GetPage(ctx context.Context, rawURL string) (*Page, error) {
	var page *Page
	err := h.do(ctx, rawURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8", func(resp *http.Response) error {
		contentType := resp.Header.Get("Content-Type")
		reader, err := charset.NewReader(io.LimitReader(resp.Body, h.sizeCap), contentType)
		if err != nil {
			return fmt.Errorf("failed to decode charset: %w", err)
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		page = &Page{
			URL:         resp.Request.URL.String(),
			ContentType: contentType,
			Body:        body,
		}
		return nil
	})
	return page, err
}

// GetJSON fetches rawURL and decodes the JSON body into out
func (h *HTTPClient) GetJSON(ctx context.Context, rawURL string, out any) error {
	return h.do(ctx, rawURL, "application/json", func(resp *http.Response) error {
		if err := json.NewDecoder(io.LimitReader(resp.Body, h.sizeCap)).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

func (h *HTTPClient) do(ctx context.Context, rawURL, accept string, handle func(*http.Response) error) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url %q", rawURL)
	}

	var lastErr error
	for attempt := 1; attempt <= h.retries; attempt++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = h.once(ctx, u.String(), accept, handle)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(lastErr) {
			return lastErr
		}

		h.logger.Warn().
			Err(lastErr).
			Str("url", u.Redacted()).
			Int("attempt", attempt).
			Msg("request failed, retrying")

		if attempt < h.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.retryDelay):
			}
		}
	}
	return lastErr
}

func (h *HTTPClient) once(ctx context.Context, rawURL, accept string, handle func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode}
	}

	return handle(resp)
}

// StatusError reports a non-2xx response
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrStatus, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// retryable reports whether another attempt might succeed. Client errors
// other than 429 will not.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}
