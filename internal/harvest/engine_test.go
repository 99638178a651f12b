package harvest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRunID = "018f4d42-3a7b-7c01-9a55-0242ac120002"

type stubPageFetcher struct {
	resp  FetchResponse
	err   error
	calls int
}

func (f *stubPageFetcher) Fetch(_ context.Context, _ FetchRequest) (FetchResponse, error) {
	f.calls++
	if f.err != nil {
		return FetchResponse{}, f.err
	}
	return f.resp, nil
}

type stubDetector struct{ promote bool }

func (d stubDetector) ShouldPromote(FetchResponse) bool { return d.promote }

type stubStore struct {
	root      string
	layouts   []string
	reports   map[string][]byte
	reportErr error
}

func (s *stubStore) EnsureLayout(_ context.Context, domain string) (string, error) {
	s.layouts = append(s.layouts, domain)
	return filepath.Join(s.root, domain), nil
}

func (s *stubStore) SaveUnique(_ context.Context, dir, name string, data []byte) (string, int64, error) {
	return filepath.Join(dir, name), int64(len(data)), nil
}

func (s *stubStore) WriteReport(_ context.Context, dir, name string, data []byte) (string, error) {
	if s.reportErr != nil {
		return "", s.reportErr
	}
	if s.reports == nil {
		s.reports = make(map[string][]byte)
	}
	path := filepath.Join(dir, name)
	s.reports[path] = data
	return path, nil
}

type stubPool struct {
	outcomes []Outcome
	calls    int
	gotDir   string
	gotCands []Candidate
}

func (p *stubPool) Download(_ context.Context, dir string, candidates []Candidate) <-chan Outcome {
	p.calls++
	p.gotDir = dir
	p.gotCands = candidates
	ch := make(chan Outcome, len(p.outcomes))
	for _, o := range p.outcomes {
		ch <- o
	}
	close(ch)
	return ch
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

type stubIDs struct {
	id  string
	err error
}

func (g stubIDs) NewID() (string, error) { return g.id, g.err }

func newTestEngine(fetcher PageFetcher, renderer PageFetcher, det RenderDetector, store ImageStore, pool Pool) *Engine {
	return NewEngine(fetcher, renderer, det, store, pool,
		stubClock{now: time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)},
		stubIDs{id: testRunID}, nil, zap.NewNop())
}

func TestEngineRunDownloadsAndReports(t *testing.T) {
	t.Parallel()

	fetcher := &stubPageFetcher{resp: FetchResponse{
		URL:        "https://www.example.com",
		StatusCode: 200,
		Body:       []byte(`<html><img src="/a.jpg"><img src="/b.png"></html>`),
	}}
	store := &stubStore{root: t.TempDir()}
	pool := &stubPool{outcomes: []Outcome{
		{Kind: OutcomeSaved, URL: "https://www.example.com/a.jpg", Path: "a.jpg", Bytes: 10},
		{Kind: OutcomeFailed, URL: "https://www.example.com/b.png", Reason: "status 500"},
	}}

	engine := newTestEngine(fetcher, nil, stubDetector{}, store, pool)
	report, err := engine.Run(context.Background(), "https://www.example.com")
	require.NoError(t, err)

	require.Equal(t, []string{"example.com"}, store.layouts)
	require.Equal(t, 1, pool.calls)
	require.Equal(t, filepath.Join(store.root, "example.com"), pool.gotDir)
	require.Len(t, pool.gotCands, 2)
	require.Equal(t, Candidate{URL: "https://www.example.com/a.jpg", Index: 0}, pool.gotCands[0])
	require.Equal(t, Candidate{URL: "https://www.example.com/b.png", Index: 1}, pool.gotCands[1])

	require.Equal(t, Summary{Saved: 1, Failed: 1, Total: 2}, report.Summary)
	require.Equal(t, testRunID, report.RunID)
	require.Zero(t, report.Skipped)

	written, ok := store.reports[filepath.Join(store.root, "example.com", ReportFilename)]
	require.True(t, ok, "report file should be persisted")
	require.Contains(t, string(written), "Download Report")
}

func TestEngineRunNoImagesSkipsReportFile(t *testing.T) {
	t.Parallel()

	fetcher := &stubPageFetcher{resp: FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><p>nothing to see</p></html>`),
	}}
	store := &stubStore{root: t.TempDir()}
	pool := &stubPool{}

	engine := newTestEngine(fetcher, nil, stubDetector{}, store, pool)
	report, err := engine.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Zero(t, report.Summary.Total)
	require.Zero(t, pool.calls, "pool should not run without candidates")
	require.Empty(t, store.reports, "no report file without candidates")
}

func TestEngineRunCreatesLayoutBeforeFetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &stubPageFetcher{err: errors.New("connection refused")}
	store := &stubStore{root: t.TempDir()}

	engine := newTestEngine(fetcher, nil, stubDetector{}, store, &stubPool{})
	_, err := engine.Run(context.Background(), "https://example.com")
	require.ErrorContains(t, err, "fetch page")
	require.Equal(t, []string{"example.com"}, store.layouts, "layout is prepared before the page fetch")
	require.Empty(t, store.reports)
}

func TestEngineRunRejectsBadStatus(t *testing.T) {
	t.Parallel()

	fetcher := &stubPageFetcher{resp: FetchResponse{StatusCode: 404, Body: []byte("not found")}}
	engine := newTestEngine(fetcher, nil, stubDetector{}, &stubStore{root: t.TempDir()}, &stubPool{})

	_, err := engine.Run(context.Background(), "https://example.com")
	require.ErrorContains(t, err, "unexpected status 404")
}

func TestEngineRunRejectsBadURL(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&stubPageFetcher{}, nil, stubDetector{}, &stubStore{root: t.TempDir()}, &stubPool{})
	_, err := engine.Run(context.Background(), "")
	require.Error(t, err)
}

func TestEngineRunPromotesToRenderer(t *testing.T) {
	t.Parallel()

	static := &stubPageFetcher{resp: FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><div id="root"></div></html>`),
	}}
	rendered := &stubPageFetcher{resp: FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><div id="root"><img src="/spa.jpg"></div></html>`),
	}}
	pool := &stubPool{outcomes: []Outcome{{Kind: OutcomeSaved, URL: "https://example.com/spa.jpg", Path: "spa.jpg", Bytes: 5}}}

	engine := newTestEngine(static, rendered, stubDetector{promote: true}, &stubStore{root: t.TempDir()}, pool)
	report, err := engine.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, 1, rendered.calls)
	require.Len(t, pool.gotCands, 1)
	require.Equal(t, "https://example.com/spa.jpg", pool.gotCands[0].URL)
	require.Equal(t, 1, report.Summary.Saved)
}

func TestEngineRunRendererFailureKeepsStatic(t *testing.T) {
	t.Parallel()

	static := &stubPageFetcher{resp: FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><img src="/static.jpg"></html>`),
	}}
	rendered := &stubPageFetcher{err: errors.New("chrome not found")}
	pool := &stubPool{outcomes: []Outcome{{Kind: OutcomeSaved, URL: "https://example.com/static.jpg", Path: "static.jpg", Bytes: 5}}}

	engine := newTestEngine(static, rendered, stubDetector{promote: true}, &stubStore{root: t.TempDir()}, pool)
	report, err := engine.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, 1, rendered.calls)
	require.Len(t, pool.gotCands, 1)
	require.Equal(t, "https://example.com/static.jpg", pool.gotCands[0].URL)
	require.Equal(t, 1, report.Summary.Saved)
}

func TestEngineRunCountsSkippedCandidates(t *testing.T) {
	t.Parallel()

	fetcher := &stubPageFetcher{resp: FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><img src="/a.jpg"><img src="/b.jpg"><img src="/c.jpg"></html>`),
	}}
	store := &stubStore{root: t.TempDir()}
	pool := &stubPool{outcomes: []Outcome{
		{Kind: OutcomeSaved, URL: "https://example.com/a.jpg", Path: "a.jpg", Bytes: 10},
	}}

	engine := newTestEngine(fetcher, nil, stubDetector{}, store, pool)
	report, err := engine.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, 2, report.Skipped)
	require.Equal(t, 1, report.Summary.Total)
	require.Contains(t, string(store.reports[filepath.Join(store.root, "example.com", ReportFilename)]), "Skipped:    2")
}

func TestEngineRunReportWriteFailure(t *testing.T) {
	t.Parallel()

	fetcher := &stubPageFetcher{resp: FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><img src="/a.jpg"></html>`),
	}}
	store := &stubStore{root: t.TempDir(), reportErr: errors.New("disk full")}
	pool := &stubPool{outcomes: []Outcome{{Kind: OutcomeSaved, URL: "https://example.com/a.jpg", Path: "a.jpg", Bytes: 1}}}

	engine := newTestEngine(fetcher, nil, stubDetector{}, store, pool)
	report, err := engine.Run(context.Background(), "https://example.com")
	require.ErrorContains(t, err, "write report")
	require.NotNil(t, report, "aggregated report is still returned")
}
