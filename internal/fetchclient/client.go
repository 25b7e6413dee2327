// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetchclient provides the rate-limited HTTP client shared by all
// retrieval strategies and the download phase.
package fetchclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/meshintel/fulltext-engine/pkg/types"
)

// RetryBaseDelay controls the base duration for backoff between lookup
// retries. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultRate = 2.0

// Client wraps http.Client with a token-bucket rate limit, a fixed
// User-Agent, and the contact email polite-pool APIs expect.
type Client struct {
	hc        *http.Client
	limiter   *rate.Limiter
	userAgent string
	email     string
}

// New builds a Client from HTTP settings. A proxy URL, when configured,
// applies to every request.
func New(cfg types.HTTPConfig) (*Client, error) {
	transport := http.DefaultTransport
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy URL: %w", err)
		}
		// Clone keeps the default dialer, keep-alive, and TLS handshake
		// settings; only the proxy changes.
		proxied := http.DefaultTransport.(*http.Transport).Clone()
		proxied.Proxy = http.ProxyURL(proxy)
		transport = proxied
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRate
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		hc: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		userAgent: cfg.UserAgent,
		email:     cfg.ContactEmail,
	}, nil
}

// Email returns the configured contact email.
func (c *Client) Email() string { return c.email }

// Do waits for rate-limiter clearance, stamps the User-Agent header, and
// executes the request.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req = req.Clone(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.hc.Do(req)
}

// Get issues a GET with optional extra headers.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(ctx, req)
}

// StatusError is returned by GetWithRetry when a non-success HTTP status
// persisted through every attempt, so callers can classify by the final
// status instead of treating exhaustion as a transport failure.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// GetWithRetry issues a GET and retries on transport errors and 5xx
// responses, up to maxRetries additional attempts with doubling backoff.
// Exhausting the retries on a 5xx yields a *StatusError carrying the
// final status. Only the open-access metadata lookup uses this; every
// other step in the pipeline attempts at most once per identifier per run.
func (c *Client) GetWithRetry(ctx context.Context, rawURL string, maxRetries int) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.Get(ctx, rawURL, nil)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, URL: rawURL}
		}

		if attempt >= maxRetries {
			return nil, lastErr
		}

		backoff := RetryBaseDelay << attempt
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// IsTimeout reports whether err is a request timeout rather than some
// other transport fault.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
