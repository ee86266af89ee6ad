package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"hls-stream-proxy/internal/metrics"
	"hls-stream-proxy/internal/model"
	"hls-stream-proxy/internal/playlist"
	"hls-stream-proxy/internal/service"
)

// tokenPattern matches token query parameter values in URLs embedded in error messages.
var tokenPattern = regexp.MustCompile(`(?i)(token=)[^&\s"]+`)

// ProxyHandler serves /proxy: it dispatches each request to the playlist
// rewriter or the media relay.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle runs the gate, resolves and classifies the target, then rewrites
// or relays it.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	query := req.URL.Query()

	pr := &model.ProxyRequest{
		Ctx:       req.Context(),
		RawTarget: query.Get("url"),
		Token:     service.TokenFromRequest(query, req.Header),
		Range:     req.Header.Get("Range"),
		Scheme:    c.Scheme(),
		Host:      req.Host,
	}

	target, kind, err := h.service.Prepare(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	switch kind {
	case model.KindPlaylist:
		return h.playlist(c, pr, target)
	default:
		return h.media(c, pr, target)
	}
}

func (h *ProxyHandler) playlist(c echo.Context, pr *model.ProxyRequest, target *model.Target) error {
	body, err := h.service.Playlist(pr, target)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Blob(http.StatusOK, playlist.ContentType, []byte(body))
}

func (h *ProxyHandler) media(c echo.Context, pr *model.ProxyRequest, target *model.Target) error {
	resp, err := h.service.OpenMedia(pr.Ctx, target, pr.Range)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)

	// Headers are out; a failure from here on can only truncate the body.
	// Returning lets net/http end the response and close the connection
	// when the declared length was not met.
	n, err := io.Copy(c.Response(), resp.Body)
	if h.metrics != nil {
		h.metrics.RelayedBytes.Add(float64(n))
	}
	if err != nil {
		if errors.Is(pr.Ctx.Err(), context.Canceled) {
			h.logger.Debug("client disconnected mid-stream",
				"host", target.URL.Host,
				"bytes", n,
			)
			return nil
		}
		h.logger.Error("streaming response body",
			"err", sanitizeError(err),
			"host", target.URL.Host,
			"bytes", n,
		)
	}
	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	switch {
	case errors.Is(err, service.ErrAccessDenied):
		h.logger.Warn("proxy denied", "path", path, "remote_ip", c.RealIP())
		return c.String(http.StatusForbidden, "Forbidden: invalid or missing token")

	case errors.Is(err, service.ErrMissingTarget):
		h.logger.Warn("proxy bad request", "err", err, "path", path)
		return c.String(http.StatusBadRequest, "Missing url param")

	case errors.Is(err, service.ErrUnsupportedScheme):
		h.logger.Warn("proxy bad request", "err", err, "path", path)
		return c.String(http.StatusBadRequest, "Only http/https supported")

	case errors.Is(err, service.ErrInvalidTarget):
		h.logger.Warn("proxy bad request", "err", sanitizeError(err), "path", path)
		return c.String(http.StatusBadRequest, "Invalid url")
	}

	msg := sanitizeError(err)
	if errors.Is(err, context.Canceled) {
		h.logger.Debug("client disconnected before upstream responded", "path", path)
	} else {
		h.logger.Error("proxy error", "err", msg, "path", path)
	}
	return c.String(http.StatusBadGateway, "Bad gateway: "+msg)
}

// sanitizeError redacts token values from error messages that may contain
// proxy callback URLs.
func sanitizeError(err error) string {
	return tokenPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
