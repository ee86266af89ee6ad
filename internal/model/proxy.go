// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Kind tells the dispatcher which handling strategy applies to a target.
type Kind int

const (
	// KindMedia is opaque content streamed through unchanged.
	KindMedia Kind = iota
	// KindPlaylist is an HLS manifest whose URI lines are rewritten.
	KindPlaylist
)

func (k Kind) String() string {
	if k == KindPlaylist {
		return "playlist"
	}
	return "media"
}

// ProxyRequest carries what the dispatcher needs from one inbound request.
type ProxyRequest struct {
	Ctx       context.Context
	RawTarget string // value of the url query parameter
	Token     string
	Range     string // inbound Range header, forwarded on media fetches

	// Scheme and Host are the proxy's own origin as seen by the client.
	// Rewritten playlist URIs point back here.
	Scheme string
	Host   string
}

// Target is a resolved absolute http(s) URL plus the directory it lives in.
type Target struct {
	URL  *url.URL
	Base *url.URL // path always ends in "/"
}

// String returns the absolute target URL.
func (t *Target) String() string {
	return t.URL.String()
}

// UpstreamResponse represents the upstream response to be relayed back.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
