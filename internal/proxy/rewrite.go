package proxy

import (
	"net/url"
	"strings"
)

// Rewrite replaces every reference line of an HLS playlist with a same-origin
// proxy URL carrying the resolved absolute form of the original reference, so
// nested playlists and segments are re-proxied transparently to the player.
// Comment and blank lines pass through untouched.
func Rewrite(manifest []byte, original *url.URL) []byte {
	lines := strings.Split(string(manifest), "\n")

	for i, line := range lines {
		l := strings.TrimSpace(line)

		// directives and blank lines are not references
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}

		lines[i] = "/proxy?url=" + url.QueryEscape(resolveReference(original, l))
	}

	return []byte(strings.Join(lines, "\n"))
}

// resolveReference turns a playlist reference into an absolute URL. Absolute
// references are kept as-is, references starting with a path separator
// resolve against the scheme and host of the playlist URL, anything else
// resolves against the playlist's directory.
func resolveReference(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err == nil && parsed.IsAbs() {
		return ref
	}

	if strings.HasPrefix(ref, "/") {
		return base.Scheme + "://" + base.Host + ref
	}

	dir := "/"
	if idx := strings.LastIndex(base.Path, "/"); idx >= 0 {
		dir = base.Path[:idx+1]
	}

	return base.Scheme + "://" + base.Host + dir + ref
}
