package service

import (
	"encoding/base64"
	"errors"
	"net/url"
	"testing"

	"hls-stream-proxy/internal/model"
)

func TestResolveTarget_RoundTrip(t *testing.T) {
	uris := []string{
		"https://cdn.example.com/videos/show/index.m3u8",
		"http://example.com/seg001.ts",
		"https://cdn.example.com/a/b.ts?sig=a%2Bb&exp=1700000000",
		"https://user@cdn.example.com:8443/path/with%20space/x.mp4",
		"https://example.com/",
		"https://example.com/live.m3u8?token=abc#frag",
	}

	for _, u := range uris {
		t.Run(u, func(t *testing.T) {
			for name, raw := range map[string]string{
				"percent-encoded": url.QueryEscape(u),
				"already decoded": u,
				"base64":          base64.StdEncoding.EncodeToString([]byte(u)),
				"base64url raw":   base64.RawURLEncoding.EncodeToString([]byte(u)),
			} {
				got, err := ResolveTarget(raw)
				if err != nil {
					t.Fatalf("%s: ResolveTarget(%q) error = %v", name, raw, err)
				}
				if got.String() != u {
					t.Errorf("%s: ResolveTarget(%q) = %q, want %q", name, raw, got.String(), u)
				}
			}
		})
	}
}

func TestResolveTarget_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"missing", "", ErrMissingTarget},
		{"not a url", "not-a-url", ErrUnsupportedScheme},
		{"ftp", "ftp://example.com/file", ErrUnsupportedScheme},
		{"ftp percent-encoded", url.QueryEscape("ftp://example.com/file"), ErrUnsupportedScheme},
		{"file base64", base64.StdEncoding.EncodeToString([]byte("file:///etc/passwd")), ErrUnsupportedScheme},
		{"bad escape and not base64", "%zz%", ErrInvalidTarget},
		{"no host", "http://", ErrInvalidTarget},
		{"bad host", url.QueryEscape("http://[::1/x"), ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveTarget(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("ResolveTarget(%q) error = %v, want %v", tt.raw, err, tt.want)
			}
		})
	}
}

func TestResolveTarget_MissingIsInvalid(t *testing.T) {
	_, err := ResolveTarget("")
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("error = %v, want it to match ErrInvalidTarget", err)
	}
}

func TestResolveTarget_SchemeCaseInsensitive(t *testing.T) {
	got, err := ResolveTarget("HTTPS://cdn.example.com/x.ts")
	if err != nil {
		t.Fatalf("ResolveTarget() error = %v", err)
	}
	if got.URL.Scheme != "https" {
		t.Errorf("Scheme = %q, want https", got.URL.Scheme)
	}
}

func TestResolveTarget_Base(t *testing.T) {
	got, err := ResolveTarget(url.QueryEscape("https://cdn.example.com/videos/show/index.m3u8"))
	if err != nil {
		t.Fatalf("ResolveTarget() error = %v", err)
	}
	if got.Base.String() != "https://cdn.example.com/videos/show/" {
		t.Errorf("Base = %q, want %q", got.Base.String(), "https://cdn.example.com/videos/show/")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		target string
		want   model.Kind
	}{
		{"https://cdn/x/index.m3u8", model.KindPlaylist},
		{"https://cdn/x/INDEX.M3U8", model.KindPlaylist},
		{"https://cdn/x/list.m3u", model.KindPlaylist},
		{"https://cdn/x/index.m3u8?token=abc", model.KindPlaylist},
		{"https://cdn/x/seg.ts", model.KindMedia},
		{"https://cdn/x/movie.mp4", model.KindMedia},
		{"https://cdn/x/seg.ts?name=a.m3u8", model.KindMedia},
		{"https://cdn/x/index.m3u8.bak", model.KindMedia},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := Classify(tt.target); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}
