package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Credential is the shared read-only origin credential. Every
// concurrently running task uses the same value; acquisition is the
// caller's problem.
type Credential struct {
	Username string
	Password string
	Token    string
}

func (c Credential) apply(req *http.Request) {
	switch {
	case c.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.Token)
	case c.Username != "":
		req.SetBasicAuth(c.Username, c.Password)
	}
}

// ClientOptions configures the mirror HTTP client.
type ClientOptions struct {
	// ConnectTimeout bounds connection establishment. Default: 30s.
	ConnectTimeout time.Duration

	// StallTimeout bounds the wait for any single unit of progress:
	// response headers, or one body read. The overall transfer deadline
	// is unbounded; large assets may run long as long as bytes keep
	// arriving. Default: 2m.
	StallTimeout time.Duration

	// MaxIdleConnsPerHost sets the idle connection pool size.
	// Default: 20.
	MaxIdleConnsPerHost int

	// Credential is applied to every request. net/http strips the
	// Authorization header on cross-host redirects.
	Credential Credential
}

// Client wraps net/http for whole-asset fetches: bounded connect,
// unbounded total duration, redirects followed.
type Client struct {
	http *http.Client
	opts ClientOptions
}

// NewClient creates a client with defaults filled in.
func NewClient(opts ClientOptions) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = 2 * time.Minute
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 20
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.StallTimeout,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		// No Client.Timeout: a multi-gigabyte granule may legitimately
		// take hours; stalls are caught by the per-read watchdog.
		http: &http.Client{Transport: transport},
		opts: opts,
	}
}

// StallTimeout returns the configured progress timeout so callers can
// arm the body-read watchdog with the same value.
func (c *Client) StallTimeout() time.Duration { return c.opts.StallTimeout }

// Get issues a GET for url, following redirects. The caller owns the
// response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.opts.Credential.apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
