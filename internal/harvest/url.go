package harvest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NormalizePageURL prepares a user-supplied page URL for fetching. Bare
// host/path input gets an https scheme prepended; anything that still has no
// host afterwards is rejected.
func NormalizePageURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("page url is empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("page url %q has no host", raw)
	}
	return u, nil
}

// DomainDir derives the per-site directory name from the page URL. The host
// is lowercased, a leading www. is stripped, and the port separator is
// replaced so the result is a single safe path component.
func DomainDir(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.ReplaceAll(host, ":", "_")
	if host == "" {
		host = "unknown-host"
	}
	return host
}
