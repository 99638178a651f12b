// Package worker implements the per-candidate download pipeline.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/JakeFAU/image-harvester/internal/harvest"
	"github.com/JakeFAU/image-harvester/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	ProbeDimensions bool
}

// Worker turns queued candidates into terminal outcomes. It implements
// harvest.CandidateProcessor; the dispatcher runs one goroutine per Worker.
type Worker struct {
	fetcher harvest.ImageFetcher
	hasher  harvest.Hasher
	dedup   *harvest.FingerprintSet
	store   harvest.ImageStore
	policy  harvest.Policy
	clock   harvest.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker.
func New(
	fetcher harvest.ImageFetcher,
	hasher harvest.Hasher,
	dedup *harvest.FingerprintSet,
	store harvest.ImageStore,
	policy harvest.Policy,
	clock harvest.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		fetcher: fetcher,
		hasher:  hasher,
		dedup:   dedup,
		store:   store,
		policy:  policy,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Process executes the pipeline for one candidate: pace, fetch, fingerprint,
// dedup, then persist. Collaborator panics are converted into failed outcomes
// so one bad payload never takes down the pool.
func (w *Worker) Process(ctx context.Context, task harvest.Task) (outcome harvest.Outcome) {
	started := w.clock.Now()
	metrics.IncActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic recovered",
				zap.String("url", logURL(task.Candidate.URL)),
				zap.Any("panic", r))
			outcome = harvest.Outcome{
				Kind:     harvest.OutcomeFailed,
				URL:      task.Candidate.URL,
				Reason:   fmt.Sprintf("panic: %v", r),
				Duration: w.clock.Now().Sub(started),
			}
		}
		metrics.DecActiveWorkers()
		metrics.ObserveDownload(task.Candidate.URL, string(outcome.Kind), outcome.Bytes)
	}()

	if err := w.waitPolicy(ctx, task.Candidate.URL); err != nil {
		return w.failed(task, started, fmt.Errorf("rate limit wait: %w", err))
	}

	fetchStarted := w.clock.Now()
	data, err := w.fetcher.FetchImage(ctx, task.Candidate.URL)
	metrics.ObserveFetchDuration(task.Candidate.URL, w.clock.Now().Sub(fetchStarted))
	if err != nil {
		return w.failed(task, started, err)
	}

	fingerprint, err := w.hasher.Hash(data.Body)
	if err != nil {
		return w.failed(task, started, fmt.Errorf("fingerprint payload: %w", err))
	}
	if !w.dedup.MarkIfNew(fingerprint) {
		w.logger.Info("duplicate image skipped",
			zap.String("url", logURL(task.Candidate.URL)),
			zap.String("fingerprint", fingerprint))
		return harvest.Outcome{
			Kind:     harvest.OutcomeDuplicate,
			URL:      task.Candidate.URL,
			Duration: w.clock.Now().Sub(started),
		}
	}

	name := harvest.SafeFilename(task.Candidate.URL, data.ContentType, task.Candidate.Index)
	path, size, err := w.store.SaveUnique(ctx, task.Dir, name, data.Body)
	if err != nil {
		return w.failed(task, started, fmt.Errorf("save image: %w", err))
	}

	outcome = harvest.Outcome{
		Kind:     harvest.OutcomeSaved,
		URL:      task.Candidate.URL,
		Path:     path,
		Bytes:    size,
		Duration: w.clock.Now().Sub(started),
	}
	if w.cfg.ProbeDimensions {
		outcome.Width, outcome.Height = dimensionsOf(data.Body)
	}
	w.logger.Info("image saved",
		zap.String("url", logURL(task.Candidate.URL)),
		zap.String("path", path),
		zap.Int64("bytes", size))
	return outcome
}

func (w *Worker) waitPolicy(ctx context.Context, url string) error {
	if w.policy == nil {
		return nil
	}
	return w.policy.Wait(ctx, url)
}

func (w *Worker) failed(task harvest.Task, started time.Time, err error) harvest.Outcome {
	w.logger.Warn("image download failed",
		zap.String("url", logURL(task.Candidate.URL)),
		zap.Error(err))
	return harvest.Outcome{
		Kind:     harvest.OutcomeFailed,
		URL:      task.Candidate.URL,
		Reason:   err.Error(),
		Duration: w.clock.Now().Sub(started),
	}
}

// dimensionsOf decodes the payload with imaging. Formats it cannot read,
// such as SVG and ICO, simply report no dimensions.
func dimensionsOf(data []byte) (int, int) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy()
}

// logURL keeps log lines readable when the candidate is an inline data URI.
func logURL(raw string) string {
	const max = 120
	if len(raw) <= max {
		return raw
	}
	return raw[:max] + "..."
}
