// Package dispatcher manages worker fan-out over the candidate queue.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

// Dispatcher fans candidate downloads out to a pool of workers and yields
// their outcomes. It implements harvest.Pool. The queue it owns is closed
// once submission finishes, so Download drives at most one run per Dispatcher.
type Dispatcher struct {
	queue      harvest.Queue
	processors []harvest.CandidateProcessor
	logger     *zap.Logger
}

// New creates a Dispatcher.
func New(queue harvest.Queue, processors []harvest.CandidateProcessor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:      queue,
		processors: processors,
		logger:     logger,
	}
}

// Download submits every candidate for processing and returns a channel that
// yields one outcome per dequeued candidate. The channel closes once all
// workers have drained. When ctx is canceled, submission stops, workers
// finish their in-flight candidate, and the rest are dropped.
func (d *Dispatcher) Download(ctx context.Context, dir string, candidates []harvest.Candidate) <-chan harvest.Outcome {
	results := make(chan harvest.Outcome, len(candidates))

	var wg sync.WaitGroup
	for _, p := range d.processors {
		wg.Add(1)
		go func(proc harvest.CandidateProcessor) {
			defer wg.Done()
			d.consume(ctx, proc, results)
		}(p)
	}

	go func() {
		defer d.queue.Close()
		for _, c := range candidates {
			if err := d.queue.Enqueue(ctx, harvest.Task{Candidate: c, Dir: dir}); err != nil {
				d.logger.Warn("submission stopped early",
					zap.Int("submitted", c.Index),
					zap.Int("total", len(candidates)),
					zap.Error(err))
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (d *Dispatcher) consume(ctx context.Context, proc harvest.CandidateProcessor, results chan<- harvest.Outcome) {
	for {
		task, err := d.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, harvest.ErrQueueClosed) && ctx.Err() == nil {
				d.logger.Warn("dequeue failed", zap.Error(err))
			}
			return
		}
		results <- proc.Process(ctx, task)
	}
}
