// Package playlist rewrites HLS manifests so that every URI they reference
// is fetched back through the proxy.
//
// The rewrite is line-oriented. A line is either a directive (blank or
// starting with '#'), copied byte for byte, or a URI, resolved against the
// manifest's directory and replaced by a proxy callback URL. Tag semantics
// are not interpreted; URIs embedded in tag attributes (EXT-X-KEY URI=...)
// are left alone.
package playlist

import (
	"net/url"
	"strings"
)

// ContentType is sent with every rewritten manifest.
const ContentType = "application/vnd.apple.mpegurl; charset=utf-8"

// CallbackPath is the proxy route rewritten URIs point at.
const CallbackPath = "/proxy"

// Rewriter builds callback URLs for one inbound request.
type Rewriter struct {
	Scheme string // scheme the client used to reach the proxy
	Host   string // host (and port) the client used to reach the proxy
	Token  string // shared secret; appended in clear when non-empty
}

// Callback returns the proxy URL that fetches abs.
func (r Rewriter) Callback(abs string) string {
	var b strings.Builder
	b.WriteString(r.Scheme)
	b.WriteString("://")
	b.WriteString(r.Host)
	b.WriteString(CallbackPath)
	b.WriteString("?url=")
	b.WriteString(url.QueryEscape(abs))
	if r.Token != "" {
		b.WriteString("&token=")
		b.WriteString(url.QueryEscape(r.Token))
	}
	return b.String()
}

// Rewrite returns body with every URI line replaced by its callback URL,
// and the number of lines rewritten. The output has exactly as many lines
// as the input, joined with "\n".
//
// A line that does not parse as a URI reference is kept verbatim. Such a
// line bypasses the proxy (and its token check) on the next hop; this is
// kept for compatibility with players that tolerate odd manifests.
func (r Rewriter) Rewrite(body string, base *url.URL) (string, int) {
	lines := SplitLines(body)
	rewritten := 0
	for i, line := range lines {
		if IsDirective(line) {
			continue
		}
		abs, ok := Resolve(base, line)
		if !ok {
			continue
		}
		lines[i] = r.Callback(abs)
		rewritten++
	}
	return strings.Join(lines, "\n"), rewritten
}

// SplitLines splits on "\n" and "\r\n" boundaries. A trailing newline
// yields a trailing empty line.
func SplitLines(body string) []string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// IsDirective reports whether line is blank or a tag/comment.
func IsDirective(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}

// Resolve resolves a manifest URI line against base. Surrounding
// whitespace is ignored.
func Resolve(base *url.URL, line string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(line))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// BaseURL returns the directory of u: the path cut after its last '/'.
// The result always ends in '/' and carries no fragment.
func BaseURL(u *url.URL) *url.URL {
	b := *u
	b.Fragment = ""
	b.RawFragment = ""

	dir := u.EscapedPath()
	dir = dir[:strings.LastIndex(dir, "/")+1]
	if dir == "" {
		dir = "/"
	}
	if p, err := url.PathUnescape(dir); err == nil {
		b.Path = p
		b.RawPath = dir
	} else {
		b.Path = dir
		b.RawPath = ""
	}
	return &b
}
