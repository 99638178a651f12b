package harvest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveImageURL(t *testing.T) {
	t.Parallel()

	page, err := url.Parse("https://www.example.com/gallery/index.html")
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "absolute path", raw: "/img/a.jpg", want: "https://www.example.com/img/a.jpg", ok: true},
		{name: "relative path", raw: "b.png", want: "https://www.example.com/gallery/b.png", ok: true},
		{name: "uppercase extension", raw: "c.PNG", want: "https://www.example.com/gallery/c.PNG", ok: true},
		{name: "other host", raw: "https://cdn.example.com/d.webp", want: "https://cdn.example.com/d.webp", ok: true},
		{name: "protocol relative", raw: "//cdn.example.com/e.svg", want: "https://cdn.example.com/e.svg", ok: true},
		{name: "query string ignored for extension", raw: "/photo.jpeg?w=100", want: "https://www.example.com/photo.jpeg?w=100", ok: true},
		{name: "inline data image", raw: "data:image/png;base64,iVBORw0KGgo=", want: "data:image/png;base64,iVBORw0KGgo=", ok: true},
		{name: "favicon", raw: "favicon.ico", want: "https://www.example.com/gallery/favicon.ico", ok: true},
		{name: "non-image extension", raw: "notes.txt", ok: false},
		{name: "script", raw: "/static/app.js", ok: false},
		{name: "no extension", raw: "/img/photo", ok: false},
		{name: "data uri but not image", raw: "data:text/html,hello", ok: false},
		{name: "empty", raw: "", ok: false},
		{name: "whitespace", raw: "   ", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ResolveImageURL(page, tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCollectCandidates(t *testing.T) {
	t.Parallel()

	page, err := url.Parse("https://example.com/")
	require.NoError(t, err)

	refs := []string{"/a.jpg", "a.jpg", "notes.txt", "/b.png", "/a.jpg"}
	candidates := CollectCandidates(page, refs)

	require.Len(t, candidates, 2, "same resolved URL should collapse to one candidate")
	require.Equal(t, Candidate{URL: "https://example.com/a.jpg", Index: 0}, candidates[0])
	require.Equal(t, Candidate{URL: "https://example.com/b.png", Index: 1}, candidates[1])
}
