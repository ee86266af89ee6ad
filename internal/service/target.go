package service

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"hls-stream-proxy/internal/model"
	"hls-stream-proxy/internal/playlist"
)

// base64Encodings are tried in order when a target is not percent-encoded.
var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// ResolveTarget decodes the raw url parameter into a Target.
//
// The query layer has already percent-decoded raw once. A value that is
// already an http(s) URL is used as-is; decoding it again would turn
// escapes such as %2B in signed query strings into literal characters.
// Otherwise raw is percent-decoded, falling back to base64 for clients
// that send the target base64-encoded to survive query-string mangling.
func ResolveTarget(raw string) (*model.Target, error) {
	if raw == "" {
		return nil, ErrMissingTarget
	}

	decoded, err := decodeTarget(raw)
	if err != nil {
		return nil, err
	}
	if !hasHTTPScheme(decoded) {
		return nil, ErrUnsupportedScheme
	}

	u, err := url.Parse(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: no host in %q", ErrInvalidTarget, decoded)
	}

	return &model.Target{URL: u, Base: playlist.BaseURL(u)}, nil
}

func decodeTarget(raw string) (string, error) {
	if hasHTTPScheme(raw) {
		return raw, nil
	}

	decoded, perr := url.PathUnescape(raw)
	if perr == nil && hasHTTPScheme(decoded) {
		return decoded, nil
	}

	if b, ok := decodeBase64(raw); ok && (perr != nil || hasHTTPScheme(b)) {
		return b, nil
	}
	if perr != nil {
		return "", ErrInvalidTarget
	}
	return decoded, nil
}

func decodeBase64(raw string) (string, bool) {
	for _, enc := range base64Encodings {
		b, err := enc.DecodeString(raw)
		if err == nil && utf8.Valid(b) {
			return string(b), true
		}
	}
	return "", false
}

func hasHTTPScheme(s string) bool {
	return hasPrefixFold(s, "http://") || hasPrefixFold(s, "https://")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Classify decides how a target is handled: anything whose path (query
// stripped) ends in .m3u8 or .m3u is a playlist, everything else is media.
func Classify(target string) model.Kind {
	path, _, _ := strings.Cut(target, "?")
	path = strings.ToLower(path)
	if strings.HasSuffix(path, ".m3u8") || strings.HasSuffix(path, ".m3u") {
		return model.KindPlaylist
	}
	return model.KindMedia
}
