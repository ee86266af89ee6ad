// Package client provides the HTTP client used for upstream fetches.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"hls-stream-proxy/internal/config"
	"hls-stream-proxy/internal/metrics"
	"hls-stream-proxy/internal/model"
)

// ErrHeaderTimeout is returned by Open when the upstream does not send
// response headers within the configured window.
var ErrHeaderTimeout = errors.New("timed out waiting for upstream response headers")

const defaultUserAgent = "hls-stream-proxy/1.0"

// UpstreamClient sends GET requests to arbitrary http(s) origins.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	userAgent  string
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and an
// optional egress proxy. The metrics parameter is optional; pass nil to
// disable upstream metrics recording.
//
// The http.Client has no overall timeout: media bodies may stream
// indefinitely. Callers bound each fetch through its context.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*UpstreamClient, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
	}

	if err := configureEgress(transport, cfg.Upstream.ProxyURL, dialer); err != nil {
		return nil, err
	}

	ua := cfg.Upstream.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &UpstreamClient{
		httpClient: &http.Client{Transport: transport},
		logger:     logger.With("component", "upstream_client"),
		metrics:    m,
		userAgent:  ua,
	}, nil
}

// configureEgress routes the transport through raw when it is set. http and
// https proxies use CONNECT; socks5 and socks5h go through x/net/proxy.
func configureEgress(t *http.Transport, raw string, forward *net.Dialer) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse upstream proxy: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, forward)
		if err != nil {
			return fmt.Errorf("build socks5 dialer: %w", err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			t.DialContext = cd.DialContext
		} else {
			t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported upstream proxy scheme %q", u.Scheme)
	}
	return nil
}

// Fetch issues a GET whose whole lifetime, body included, is bounded by ctx.
// The caller is responsible for closing the response body.
func (c *UpstreamClient) Fetch(ctx context.Context, kind model.Kind, target string, header http.Header) (*model.UpstreamResponse, error) {
	req, err := c.newRequest(ctx, target, header)
	if err != nil {
		return nil, err
	}
	return c.do(req, kind)
}

// Open issues a streaming GET. headerTimeout bounds only the wait for
// response headers; once they arrive the body may be read for as long as
// ctx lives. A zero headerTimeout waits indefinitely. Closing the returned
// body releases the request.
func (c *UpstreamClient) Open(ctx context.Context, kind model.Kind, target string, header http.Header, headerTimeout time.Duration) (*model.UpstreamResponse, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	var timer *time.Timer
	if headerTimeout > 0 {
		timer = time.AfterFunc(headerTimeout, func() { cancel(ErrHeaderTimeout) })
	}
	stopTimer := func() bool { return timer == nil || timer.Stop() }

	req, err := c.newRequest(ctx, target, header)
	if err != nil {
		stopTimer()
		cancel(nil)
		return nil, err
	}

	resp, err := c.do(req, kind)
	fired := !stopTimer()
	if err != nil {
		cancel(nil)
		if errors.Is(context.Cause(ctx), ErrHeaderTimeout) {
			return nil, fmt.Errorf("upstream request: %w", ErrHeaderTimeout)
		}
		return nil, err
	}
	if fired {
		_ = resp.Body.Close()
		cancel(nil)
		return nil, fmt.Errorf("upstream request: %w", ErrHeaderTimeout)
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: func() { cancel(nil) }}
	return resp, nil
}

func (c *UpstreamClient) newRequest(ctx context.Context, target string, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header.Clone()
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func (c *UpstreamClient) do(req *http.Request, kind model.Kind) (*model.UpstreamResponse, error) {
	c.logger.Debug("upstream request",
		"kind", kind.String(),
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(kind.String()).Observe(duration)
	}
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(kind.String(), strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// cancelOnClose releases the request context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
