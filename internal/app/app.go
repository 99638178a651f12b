// Package app builds and owns the long-lived pieces of one harvester process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/image-harvester/internal/api"
	"github.com/JakeFAU/image-harvester/internal/clock/system"
	"github.com/JakeFAU/image-harvester/internal/config"
	"github.com/JakeFAU/image-harvester/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/image-harvester/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/image-harvester/internal/fetcher/headless"
	imagefetcher "github.com/JakeFAU/image-harvester/internal/fetcher/image"
	"github.com/JakeFAU/image-harvester/internal/harvest"
	"github.com/JakeFAU/image-harvester/internal/hash/md5"
	"github.com/JakeFAU/image-harvester/internal/headless/detector"
	"github.com/JakeFAU/image-harvester/internal/id/uuid"
	"github.com/JakeFAU/image-harvester/internal/logging"
	"github.com/JakeFAU/image-harvester/internal/metrics"
	"github.com/JakeFAU/image-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/image-harvester/internal/policy/simple"
	"github.com/JakeFAU/image-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/image-harvester/internal/progress/sinks"
	queueMemory "github.com/JakeFAU/image-harvester/internal/queue/memory"
	localstorage "github.com/JakeFAU/image-harvester/internal/storage/local"
	memorystorage "github.com/JakeFAU/image-harvester/internal/storage/memory"
	"github.com/JakeFAU/image-harvester/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	engine      *harvest.Engine
	progressHub *progress.Hub
	renderer    *headlessfetcher.Fetcher
	statusSrv   *http.Server
}

// Build creates the application's dependencies from the loaded configuration.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.NewWithFile(cfg.Logging.Development, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies")

	store, err := setupStorage(app)
	if err != nil {
		return nil, err
	}

	emitter := setupProgress(ctx, app)

	renderer, detect := setupRenderer(app)
	pageFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Harvest.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	logger.Info("using colly page fetcher", zap.String("user_agent", cfg.Harvest.UserAgent))

	pool := setupPool(app, store)
	clock := system.New()
	ids := uuid.New()

	app.engine = harvest.NewEngine(
		pageFetcher,
		renderer,
		detect,
		store,
		pool,
		clock,
		ids,
		emitter,
		logger.Named("engine"),
	)

	if cfg.Metrics.Enabled {
		app.statusSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           api.NewServer(logger.Named("api")).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return app, nil
}

// Logger exposes the process logger built during Build.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run executes one harvest of the given page URL. The status listener, when
// configured, serves /metrics for the duration of the run.
func (a *App) Run(ctx context.Context, pageURL string) (*harvest.Report, error) {
	if a.statusSrv != nil {
		go func() {
			a.logger.Info("status listener started", zap.String("addr", a.statusSrv.Addr))
			if err := a.statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("status listener error", zap.Error(err))
			}
		}()
	}
	return a.engine.Run(ctx, pageURL)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.statusSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("status listener shutdown failed", zap.Error(err))
		}
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if err := a.logger.Sync(); err != nil {
		// Sync to a console fd fails on some platforms; nothing to do.
		_ = err
	}
	return nil
}

func setupStorage(app *App) (harvest.ImageStore, error) {
	switch app.cfg.Storage.Backend {
	case "memory":
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewStore(), nil
	default:
		store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Harvest.OutputDir})
		if err != nil {
			return nil, fmt.Errorf("local store init failed: %w", err)
		}
		app.logger.Info("using local storage backend", zap.String("base_dir", app.cfg.Harvest.OutputDir))
		return store, nil
	}
}

func setupProgress(ctx context.Context, app *App) progress.Emitter {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return nil
	}
	var sinkList []progress.Sink
	if app.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
	}
	if app.cfg.Metrics.Enabled {
		promSink, err := progresssinks.NewPrometheusSink(nil)
		if err != nil {
			app.logger.Warn("prometheus progress sink init failed", zap.Error(err))
		} else {
			sinkList = append(sinkList, promSink)
		}
	}
	if len(sinkList) == 0 {
		app.logger.Warn("progress tracking enabled but no sinks configured")
		return nil
	}
	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(app.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(app.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    ctx,
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("sinks", len(sinkList)))
	return app.progressHub
}

// setupRenderer builds the optional headless escalation path. Init failure is
// not fatal; the noop renderer makes every escalation attempt fail, which the
// engine answers by keeping the statically fetched page.
func setupRenderer(app *App) (harvest.PageFetcher, harvest.RenderDetector) {
	if !app.cfg.Render.Enabled {
		return nil, nil
	}
	detect := detector.NewHeuristic(app.cfg.Render.MinHTMLBytes)
	renderer, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       app.cfg.Render.MaxParallel,
		UserAgent:         app.cfg.Harvest.UserAgent,
		NavigationTimeout: time.Duration(app.cfg.Render.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		app.logger.Warn("headless renderer init failed, static fetch only", zap.Error(err))
		return headlessfetcher.NewNoop(), detect
	}
	app.renderer = renderer
	app.logger.Info("headless renderer enabled", zap.Int("max_parallel", app.cfg.Render.MaxParallel))
	return renderer, detect
}

func setupPool(app *App, store harvest.ImageStore) harvest.Pool {
	cfg := app.cfg
	fetcher := imagefetcher.New(imagefetcher.Config{
		UserAgent:   cfg.Harvest.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		MaxBytes:    cfg.MaxSizeBytes(),
		MaxAttempts: cfg.Harvest.RetryMaxAttempt,
	})

	var policy harvest.Policy
	if cfg.RateLimit.Enabled {
		policy = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimit.DefaultRPS,
			DefaultBurst: cfg.RateLimit.DefaultBurst,
		})
		app.logger.Info("rate limiter enabled",
			zap.Float64("default_rps", cfg.RateLimit.DefaultRPS),
			zap.Int("default_burst", cfg.RateLimit.DefaultBurst))
	} else {
		policy = simple.New()
	}

	dedup := harvest.NewFingerprintSet()
	hasher := md5.New()
	clock := system.New()
	workerCfg := worker.Config{ProbeDimensions: cfg.Harvest.ProbeDimensions}

	processors := make([]harvest.CandidateProcessor, 0, cfg.Harvest.Concurrency)
	for i := 0; i < cfg.Harvest.Concurrency; i++ {
		processors = append(processors, worker.New(
			fetcher,
			hasher,
			dedup,
			store,
			policy,
			clock,
			workerCfg,
			app.logger.Named("worker").With(zap.Int("index", i)),
		))
	}

	queue := queueMemory.NewQueue(cfg.Harvest.QueueDepth)
	return dispatcher.New(queue, processors, app.logger.Named("dispatcher"))
}
