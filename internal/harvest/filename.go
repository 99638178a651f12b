package harvest

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// maxFilenameLen caps generated names so every common filesystem accepts them.
const maxFilenameLen = 100

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// extensionsByMIME maps image content types to the extension used when the
// URL itself does not carry a usable name.
var extensionsByMIME = map[string]string{
	"image/jpeg":               ".jpg",
	"image/jpg":                ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/bmp":                ".bmp",
	"image/svg+xml":            ".svg",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// SafeFilename derives a filesystem-safe name for a candidate. The URL's path
// basename is preferred; names left without a usable stem after sanitizing
// fall back to image_<index> with an extension guessed from contentType. The
// result never exceeds maxFilenameLen and never contains path separators or
// traversal sequences.
func SafeFilename(rawURL, contentType string, index int) string {
	name := invalidFilenameChars.ReplaceAllString(basenameOf(rawURL), "")
	if degenerate(name) {
		name = fmt.Sprintf("image_%d%s", index, extensionFor(contentType))
	}
	return truncateName(name, maxFilenameLen)
}

// NumberedVariant appends a collision counter while keeping the extension and
// the length cap intact.
func NumberedVariant(name string, n int) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	suffix := fmt.Sprintf("_%d", n)
	keep := maxFilenameLen - len(ext) - len(suffix)
	if keep < 0 {
		keep = 0
	}
	if len(stem) > keep {
		stem = stem[:keep]
	}
	return stem + suffix + ext
}

func basenameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// degenerate reports whether a sanitized name lacks a usable stem: empty
// names, bare dot runs, and extension-only leftovers such as ".jpg".
func degenerate(name string) bool {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return strings.Trim(stem, ".") == ""
}

func extensionFor(contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if ext, ok := extensionsByMIME[mediaType]; ok {
		return ext
	}
	return ".jpg"
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) >= limit {
		return name[:limit]
	}
	stem := strings.TrimSuffix(name, ext)
	return stem[:limit-len(ext)] + ext
}
