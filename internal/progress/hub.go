package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// A harvest run lasts seconds and emits a handful of events per image, so the
// hub is sized small. Dropped events are tolerated; the total is logged once
// at close.
const (
	defaultBufferSize     = 256
	defaultMaxBatchEvents = 32
	defaultMaxBatchWait   = 200 * time.Millisecond
	defaultSinkTimeout    = 2 * time.Second
)

// Config tunes hub buffering. Zero values take the defaults above.
type Config struct {
	BufferSize     int
	MaxBatchEvents int
	MaxBatchWait   time.Duration
	SinkTimeout    time.Duration
	BaseContext    context.Context
	Logger         *zap.Logger
}

// Hub sits between the pipeline goroutines and the sinks that record
// progress. Emit never blocks a worker: events queue on a buffered channel
// and a single background goroutine batches them out to every sink.
type Hub struct {
	cfg    Config
	sinks  []Sink
	events chan Event
	quit   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	dropped   atomic.Int64
	closing   atomic.Bool
	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts the batching goroutine over the given sinks. The hub accepts
// events immediately.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: cfg.Logger,
	}
	go h.loop()
	return h
}

// Emit queues one event. A full buffer drops the event rather than stall the
// pipeline; malformed events are discarded.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closing.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding malformed progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
	}
}

// Close flushes buffered events, closes the sinks, and waits for the
// background goroutine. Safe to call more than once.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closing.Store(true)
		h.closeCtx = ctx
		close(h.quit)
	})
	select {
	case <-h.done:
		if n := h.dropped.Load(); n > 0 {
			h.logger.Warn("progress events dropped under backpressure", zap.Int64("dropped", n))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

// loop owns the pending batch. The flush timer only runs while the batch is
// non-empty, armed when the first event arrives.
func (h *Hub) loop() {
	defer close(h.done)

	var batch []Event
	flush := time.NewTimer(h.cfg.MaxBatchWait)
	stopTimer(flush)

	for {
		select {
		case evt := <-h.events:
			if len(batch) == 0 {
				flush.Reset(h.cfg.MaxBatchWait)
			}
			batch = append(batch, evt)
			if len(batch) >= h.cfg.MaxBatchEvents {
				stopTimer(flush)
				h.deliver(batch)
				batch = nil
			}
		case <-flush.C:
			h.deliver(batch)
			batch = nil
		case <-h.quit:
			stopTimer(flush)
			h.deliver(h.drain(batch))
			h.closeSinks()
			return
		}
	}
}

// drain empties whatever is still buffered after quit. Emit refuses new
// events once closing is set, so this terminates.
func (h *Hub) drain(batch []Event) []Event {
	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
		default:
			return batch
		}
	}
}

func (h *Hub) deliver(batch []Event) {
	if len(batch) == 0 {
		return
	}
	events := append([]Event(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, events); err != nil {
			h.logger.Warn("progress sink rejected batch", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
