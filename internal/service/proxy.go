// Package service implements the proxy dispatch pipeline: token check,
// target resolution, classification, playlist rewriting and media fetches.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hls-stream-proxy/internal/client"
	"hls-stream-proxy/internal/config"
	"hls-stream-proxy/internal/metrics"
	"hls-stream-proxy/internal/model"
	"hls-stream-proxy/internal/playlist"
)

// forwardableResponseHeaders are the only media response headers relayed to
// the client.
var forwardableResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Accept-Ranges",
	"Content-Range",
}

// ProxyService handles the per-request proxy pipeline. It holds no
// per-request state and is safe for concurrent use.
type ProxyService struct {
	client  *client.UpstreamClient
	gate    *Gate
	logger  *slog.Logger
	metrics *metrics.Metrics

	token              string
	playlistTimeout    time.Duration
	mediaHeaderTimeout time.Duration
	playlistMaxBytes   int64
}

// NewProxyService creates a ProxyService. The metrics parameter is
// optional; pass nil to disable rewrite counting.
func NewProxyService(c *client.UpstreamClient, gate *Gate, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		client:             c,
		gate:               gate,
		logger:             logger.With("component", "proxy_service"),
		metrics:            m,
		token:              cfg.Auth.Token,
		playlistTimeout:    time.Duration(cfg.Upstream.PlaylistTimeoutSeconds) * time.Second,
		mediaHeaderTimeout: time.Duration(cfg.Upstream.MediaHeaderTimeoutSeconds) * time.Second,
		playlistMaxBytes:   cfg.Upstream.PlaylistMaxBytes,
	}
}

// Prepare runs the checks that precede any upstream traffic: the token
// gate, target resolution and classification.
func (s *ProxyService) Prepare(pr *model.ProxyRequest) (*model.Target, model.Kind, error) {
	if err := s.gate.Check(pr.Token); err != nil {
		return nil, model.KindMedia, err
	}

	target, err := ResolveTarget(pr.RawTarget)
	if err != nil {
		return nil, model.KindMedia, err
	}

	kind := Classify(target.String())
	s.logger.Debug("dispatch",
		"kind", kind.String(),
		"host", target.URL.Host,
		"path", target.URL.Path,
	)
	return target, kind, nil
}

// Playlist fetches the manifest at target and rewrites its URI lines to
// point back at the proxy origin recorded in pr.
func (s *ProxyService) Playlist(pr *model.ProxyRequest, target *model.Target) (string, error) {
	body, err := s.FetchPlaylist(pr.Ctx, target)
	if err != nil {
		return "", err
	}

	rw := playlist.Rewriter{Scheme: pr.Scheme, Host: pr.Host, Token: s.token}
	out, n := rw.Rewrite(body, target.Base)
	if s.metrics != nil {
		s.metrics.RewrittenURIs.Add(float64(n))
	}
	return out, nil
}

// FetchPlaylist returns the manifest body as text. The configured timeout
// covers the whole exchange, body included.
func (s *ProxyService) FetchPlaylist(ctx context.Context, target *model.Target) (string, error) {
	if s.playlistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.playlistTimeout)
		defer cancel()
	}

	resp, err := s.client.Fetch(ctx, model.KindPlaylist, target.String(), nil)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Status: resp.StatusCode}
	}

	var r io.Reader = resp.Body
	if s.playlistMaxBytes > 0 {
		r = io.LimitReader(resp.Body, s.playlistMaxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("read playlist: %w", err)}
	}
	if s.playlistMaxBytes > 0 && int64(len(body)) > s.playlistMaxBytes {
		return "", &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("playlist exceeds %d bytes", s.playlistMaxBytes)}
	}
	return string(body), nil
}

// OpenMedia starts a streaming fetch of target, forwarding rangeHeader when
// set. Any upstream status is returned as-is; only transport failures and
// header timeouts are errors. The caller must close the response body.
func (s *ProxyService) OpenMedia(ctx context.Context, target *model.Target, rangeHeader string) (*model.UpstreamResponse, error) {
	header := make(http.Header)
	if rangeHeader != "" {
		header.Set("Range", rangeHeader)
	}

	resp, err := s.client.Open(ctx, model.KindMedia, target.String(), header, s.mediaHeaderTimeout)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	resp.Header = filterResponseHeaders(resp.Header)
	return resp, nil
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableResponseHeaders {
		if v := src.Get(key); v != "" {
			dst.Set(key, v)
		}
	}
	return dst
}
