package harvest

import (
	"net/url"
	"path"
	"strings"
)

// imageExtensions lists the path suffixes accepted as downloadable images.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
	".svg":  {},
	".ico":  {},
}

// dataImagePrefix marks inline payloads that never touch the network.
const dataImagePrefix = "data:image"

// ResolveImageURL joins a raw reference against the page URL and reports
// whether the result looks like a downloadable image. Inline data:image
// payloads pass through untouched.
func ResolveImageURL(page *url.URL, raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, dataImagePrefix) {
		return trimmed, true
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	abs := page.ResolveReference(ref)
	ext := strings.ToLower(path.Ext(abs.Path))
	if _, ok := imageExtensions[ext]; !ok {
		return "", false
	}
	return abs.String(), true
}

// CollectCandidates resolves raw references into deduplicated, index-stamped
// candidates, preserving discovery order.
func CollectCandidates(page *url.URL, refs []string) []Candidate {
	seen := make(map[string]struct{}, len(refs))
	candidates := make([]Candidate, 0, len(refs))
	for _, ref := range refs {
		resolved, ok := ResolveImageURL(page, ref)
		if !ok {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		candidates = append(candidates, Candidate{URL: resolved, Index: len(candidates)})
	}
	return candidates
}
