package harvest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/image-harvester/internal/progress"
)

// Engine drives one full run: fetch the page, extract candidates, fan the
// downloads out to the pool, then aggregate and persist the report.
type Engine struct {
	pageFetcher PageFetcher
	renderer    PageFetcher
	detector    RenderDetector
	store       ImageStore
	pool        Pool
	clock       Clock
	ids         IDGenerator
	emitter     progress.Emitter
	logger      *zap.Logger
}

// NewEngine wires the collaborators for a run. renderer may be nil when
// headless rendering is disabled and emitter may be nil when progress
// reporting is off.
func NewEngine(
	pageFetcher PageFetcher,
	renderer PageFetcher,
	detector RenderDetector,
	store ImageStore,
	pool Pool,
	clock Clock,
	ids IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		pageFetcher: pageFetcher,
		renderer:    renderer,
		detector:    detector,
		store:       store,
		pool:        pool,
		clock:       clock,
		ids:         ids,
		emitter:     emitter,
		logger:      logger,
	}
}

// Run downloads every image referenced by the page at rawURL. Setup failures
// (bad URL, unreachable page, unusable output directory) return an error;
// per-image failures are folded into the report instead. A canceled context
// stops new downloads while letting in-flight ones finish; the report then
// covers the processed candidates and counts the rest as skipped.
func (e *Engine) Run(ctx context.Context, rawURL string) (*Report, error) {
	pageURL, err := NormalizePageURL(rawURL)
	if err != nil {
		return nil, err
	}
	runID, err := e.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("allocate run id: %w", err)
	}
	started := e.clock.Now()
	logger := e.logger.With(zap.String("run_id", runID), zap.String("url", pageURL.String()))

	dir, err := e.store.EnsureLayout(ctx, DomainDir(pageURL))
	if err != nil {
		return nil, fmt.Errorf("prepare output layout: %w", err)
	}
	logger.Info("run started", zap.String("output_dir", dir))
	evtID := eventRunID(runID)
	e.emit(progress.Event{
		RunID: evtID,
		TS:    started,
		Stage: progress.StageRunStart,
		Site:  pageURL.Hostname(),
		URL:   pageURL.String(),
	})

	resp, err := e.fetchPage(ctx, pageURL.String(), logger)
	if err != nil {
		e.emit(progress.Event{
			RunID: evtID,
			TS:    e.clock.Now(),
			Stage: progress.StageRunError,
			Site:  pageURL.Hostname(),
			URL:   pageURL.String(),
			Dur:   e.clock.Now().Sub(started),
			Note:  err.Error(),
		})
		return nil, err
	}
	logger.Info("page fetched",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Bool("used_headless", resp.UsedHeadless),
		zap.Duration("duration", resp.Duration))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	candidates := CollectCandidates(pageURL, ExtractImageRefs(doc))
	e.emit(progress.Event{
		RunID:       evtID,
		TS:          e.clock.Now(),
		Stage:       progress.StagePageFetched,
		Site:        pageURL.Hostname(),
		URL:         pageURL.String(),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Bytes:       int64(len(resp.Body)),
		Images:      int64(len(candidates)),
		Dur:         resp.Duration,
	})

	if len(candidates) == 0 {
		logger.Warn("no image candidates found on page")
		report := Summarize(runID, pageURL.String(), dir, e.clock.Now(), nil, 0)
		e.emitRunDone(evtID, started, report)
		return report, nil
	}
	logger.Info("image candidates collected", zap.Int("count", len(candidates)))

	outcomes := make([]Outcome, 0, len(candidates))
	for outcome := range e.pool.Download(ctx, dir, candidates) {
		outcomes = append(outcomes, outcome)
		e.emitOutcome(evtID, outcome)
	}
	skipped := len(candidates) - len(outcomes)
	if skipped > 0 {
		logger.Warn("run interrupted before all candidates were processed", zap.Int("skipped", skipped))
	}

	report := Summarize(runID, pageURL.String(), dir, e.clock.Now(), outcomes, skipped)
	// The report covers whatever was processed, interrupt or not, so its
	// write must survive cancellation of the run context.
	if _, err := e.store.WriteReport(context.WithoutCancel(ctx), dir, ReportFilename, report.Render()); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	logger.Info("run complete",
		zap.Int("saved", report.Summary.Saved),
		zap.Int("duplicates", report.Summary.Duplicates),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("total", report.Summary.Total),
		zap.String("output_dir", dir))
	e.emitRunDone(evtID, started, report)
	return report, nil
}

// fetchPage retrieves the page statically and escalates to the headless
// renderer when the detector flags the response as script-driven. Renderer
// failures fall back to the static response rather than failing the run.
func (e *Engine) fetchPage(ctx context.Context, pageURL string, logger *zap.Logger) (FetchResponse, error) {
	req := FetchRequest{URL: pageURL}
	resp, err := e.pageFetcher.Fetch(ctx, req)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("fetch page: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FetchResponse{}, fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}
	if e.renderer == nil || e.detector == nil || !e.detector.ShouldPromote(resp) {
		return resp, nil
	}
	logger.Info("static response looks script-driven, promoting to headless render")
	rendered, rerr := e.renderer.Fetch(ctx, req)
	if rerr != nil {
		logger.Warn("headless render failed, keeping static response", zap.Error(rerr))
		return resp, nil
	}
	if rendered.StatusCode >= 200 && rendered.StatusCode < 300 && len(rendered.Body) > 0 {
		rendered.UsedHeadless = true
		return rendered, nil
	}
	logger.Warn("headless render returned unusable response, keeping static response",
		zap.Int("status", rendered.StatusCode))
	return resp, nil
}

func (e *Engine) emitRunDone(evtID [16]byte, started time.Time, report *Report) {
	e.emit(progress.Event{
		RunID:  evtID,
		TS:     e.clock.Now(),
		Stage:  progress.StageRunDone,
		URL:    report.PageURL,
		Images: int64(report.Summary.Saved),
		Dur:    e.clock.Now().Sub(started),
	})
}

func (e *Engine) emitOutcome(evtID [16]byte, o Outcome) {
	stage := progress.StageImageFailed
	switch o.Kind {
	case OutcomeSaved:
		stage = progress.StageImageSaved
	case OutcomeDuplicate:
		stage = progress.StageImageDuplicate
	}
	e.emit(progress.Event{
		RunID: evtID,
		TS:    e.clock.Now(),
		Stage: stage,
		Site:  outcomeSite(o.URL),
		URL:   shortURL(o.URL),
		Bytes: o.Bytes,
		Dur:   o.Duration,
		Note:  o.Reason,
	})
}

func (e *Engine) emit(evt progress.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

// outcomeSite labels the origin host for metrics; inline data URIs get their
// own bucket.
func outcomeSite(rawURL string) string {
	if strings.HasPrefix(rawURL, dataImagePrefix) {
		return "inline"
	}
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "unknown"
}

// eventRunID converts the run's UUID string into the binary event form. A
// non-UUID id yields the zero value, which the hub discards.
func eventRunID(runID string) [16]byte {
	parsed, err := uuid.Parse(runID)
	if err != nil {
		return [16]byte{}
	}
	return progress.UUIDToBytes(parsed)
}
