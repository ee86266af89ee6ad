package service

import (
	"crypto/subtle"
	"net/http"
	"net/url"

	"hls-stream-proxy/internal/config"
)

// TokenHeader is the custom header that may carry the shared secret.
const TokenHeader = "X-Proxy-Token"

// Gate checks the shared-secret token. The zero secret disables it.
type Gate struct {
	secret string
}

// NewGate creates a Gate from the configured token.
func NewGate(cfg *config.Config) *Gate {
	return &Gate{secret: cfg.Auth.Token}
}

// Enabled reports whether a token is required.
func (g *Gate) Enabled() bool {
	return g.secret != ""
}

// Allow reports whether token grants access.
func (g *Gate) Allow(token string) bool {
	if g.secret == "" {
		return true
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.secret)) == 1
}

// Check returns ErrAccessDenied when token does not grant access.
func (g *Gate) Check(token string) error {
	if !g.Allow(token) {
		return ErrAccessDenied
	}
	return nil
}

// TokenFromRequest picks the first non-empty of the token query parameter,
// the X-Proxy-Token header and the Authorization header. The Authorization
// value is compared as-is; no scheme prefix is stripped.
func TokenFromRequest(query url.Values, header http.Header) string {
	if t := query.Get("token"); t != "" {
		return t
	}
	if t := header.Get(TokenHeader); t != "" {
		return t
	}
	return header.Get("Authorization")
}
