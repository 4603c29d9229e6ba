package sdapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the shared client.
type Config struct {
	// BaseURL of the local API, e.g. http://127.0.0.1:3000/sdapi/v1.
	BaseURL        string
	InferTimeout   time.Duration
	OptionsTimeout time.Duration
	Retry          RetryPolicy
	// Transport is the underlying round tripper; nil builds a pooled transport.
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// Client is the connection-pooled client shared by every component that talks
// to the local API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	inferTimeout   time.Duration
	optionsTimeout time.Duration
	httpClient     *http.Client
	log            zerolog.Logger
}

// NewClient builds the shared client with the retry policy mounted on its transport.
func NewClient(cfg Config) *Client {
	base := cfg.Transport
	if base == nil {
		base = newPooledTransport()
	}
	// Timeout stays 0: every call carries a context deadline instead.
	cli := &http.Client{Transport: newRetryTransport(base, cfg.Retry, cfg.Logger), Timeout: 0}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		inferTimeout:   cfg.InferTimeout,
		optionsTimeout: cfg.OptionsTimeout,
		httpClient:     cli,
		log:            cfg.Logger,
	}
}

func newPooledTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// BaseURL returns the local API base without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// URL joins the base URL and an endpoint path such as "/txt2img".
func (c *Client) URL(path string) string { return c.baseURL + path }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// postJSON sends body to path and returns the full response body and status.
func (c *Client) postJSON(ctx context.Context, path string, body []byte) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && !IsRetryExhausted(err) {
			return nil, nil, fmt.Errorf("POST %s: %w", path, ctx.Err())
		}
		return nil, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("read %s response: %w", path, err)
	}
	return b, resp, nil
}

func snippet(b []byte) string {
	const max = 4096
	if len(b) > max {
		b = b[:max]
	}
	return strings.TrimSpace(string(b))
}
