// Package headless renders pages whose image markup is built by JavaScript.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

const (
	defaultNavTimeout = 45 * time.Second

	// Lazy loaders key off the viewport; a desktop-sized one plus one
	// scroll to the bottom makes most of them attach their real sources.
	viewportWidth  = 1366
	viewportHeight = 900
	settleDelay    = 500 * time.Millisecond
)

// Config controls the Chrome-backed renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements harvest.PageFetcher through a headless Chrome process.
// The harvester renders at most one page per run, so MaxParallel matters only
// when several runs share a process.
type Fetcher struct {
	cfg    Config
	slots  chan struct{}
	chrome context.Context
	cancel context.CancelFunc
}

// NewChromedp prepares a Chrome allocator. No browser starts until the first
// Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	chrome, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{cfg: cfg, slots: slots, chrome: chrome, cancel: cancel}, nil
}

// Close tears down the Chrome allocator.
func (f *Fetcher) Close() {
	f.cancel()
}

// Fetch renders the page and returns the post-JavaScript DOM. The scroll
// pass before capture pulls lazy-loaded image sources into the markup.
func (f *Fetcher) Fetch(ctx context.Context, request harvest.FetchRequest) (harvest.FetchResponse, error) {
	if err := f.acquire(ctx); err != nil {
		return harvest.FetchResponse{}, err
	}
	defer f.release()

	tabCtx, closeTab := chromedp.NewContext(f.chrome)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancel()

	var doc docResponse
	chromedp.ListenTarget(tabCtx, doc.listen)

	var (
		html     string
		finalURL string
	)
	start := time.Now()
	err := chromedp.Run(tabCtx,
		f.prepareTab(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(settleDelay),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("render page: %w", err)
	}

	status, headers, url := doc.result(request.URL, finalURL)
	return harvest.FetchResponse{
		URL:          url,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

// prepareTab applies the harvester identity before navigation: network
// domain on, browser User-Agent, a desktop viewport, and any caller headers.
func (f *Fetcher) prepareTab(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if err := emulation.SetDeviceMetricsOverride(viewportWidth, viewportHeight, 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(chromeHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.slots == nil {
		return nil
	}
	select {
	case f.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("render slot wait: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.slots == nil {
		return
	}
	select {
	case <-f.slots:
	default:
	}
}

// docResponse records the main document's network response while chromedp
// drives the tab. The run fetches one document, so only the latest document
// response is kept (a redirect chain overwrites earlier entries).
type docResponse struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	url     string
}

func (d *docResponse) listen(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range resp.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	d.mu.Lock()
	d.status = int(resp.Response.Status)
	d.headers = headers
	d.url = resp.Response.URL
	d.mu.Unlock()
}

// result fills gaps left by a silent CDP session: prefer the captured
// document URL, then the tab location, then the requested URL; a missing
// status after a successful render counts as 200.
func (d *docResponse) result(requestURL, finalURL string) (int, http.Header, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	url := d.url
	if url == "" {
		url = finalURL
	}
	if url == "" {
		url = requestURL
	}
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := d.headers
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}

// chromeHeaders converts an http.Header into the CDP wire form, single
// values flattened to plain strings.
func chromeHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			out[key] = values[0]
		default:
			out[key] = append([]string(nil), values...)
		}
	}
	return out
}
