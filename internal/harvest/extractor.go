package harvest

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var cssURLPattern = regexp.MustCompile(`url\(["']?(.*?)["']?\)`)

// ExtractImageRefs walks the parsed document and returns every raw image
// reference in discovery order: <img> sources and srcsets, the first srcset
// entry of each <picture> source, and url(...) values from inline
// background-image styles.
func ExtractImageRefs(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	refs := make([]string, 0, 32)
	add := func(raw string) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		if _, ok := seen[trimmed]; ok {
			return
		}
		seen[trimmed] = struct{}{}
		refs = append(refs, trimmed)
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if src := firstAttr(sel, "src", "data-src", "data-lazy-src"); src != "" {
			add(src)
		}
		if srcset := firstAttr(sel, "srcset", "data-srcset"); srcset != "" {
			for _, entry := range strings.Split(srcset, ",") {
				if u := srcsetURL(entry); u != "" {
					add(u)
				}
			}
		}
	})

	doc.Find("picture source").Each(func(_ int, sel *goquery.Selection) {
		srcset := strings.TrimSpace(sel.AttrOr("srcset", ""))
		if srcset == "" {
			return
		}
		if u := srcsetURL(strings.Split(srcset, ",")[0]); u != "" {
			add(u)
		}
	})

	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		style := sel.AttrOr("style", "")
		if !strings.Contains(style, "background-image") {
			return
		}
		for _, match := range cssURLPattern.FindAllStringSubmatch(style, -1) {
			add(match[1])
		}
	})

	return refs
}

// firstAttr returns the first non-empty attribute value among names.
func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(sel.AttrOr(name, "")); v != "" {
			return v
		}
	}
	return ""
}

// srcsetURL returns the URL portion of one srcset entry, dropping the
// width/density descriptor.
func srcsetURL(entry string) string {
	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
