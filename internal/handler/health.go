// Package handler provides the HTTP handlers and route wiring.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"hls-stream-proxy/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

const indexText = "Stream proxy running. Use /proxy?url=<encoded_url>"

// HealthHandler serves the index, health and status endpoints.
type HealthHandler struct {
	gate    *service.Gate
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(gate *service.Gate, v Version) *HealthHandler {
	return &HealthHandler{gate: gate, version: v}
}

// Index returns a short usage hint.
func (h *HealthHandler) Index(c echo.Context) error {
	return c.String(http.StatusOK, indexText)
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information. It never reveals the token.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        string(h.version),
		"token_required": h.gate.Enabled(),
	})
}
