package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/image-harvester/internal/progress"
)

// LogSink writes progress events to the structured log. Failures log at Warn
// so an operator tailing the console sees broken candidates without grepping;
// everything else logs at Info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps a zap logger as a progress sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs one line per event, omitting fields the stage never fills.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := make([]zap.Field, 0, 8)
		fields = append(fields,
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		)
		if evt.Site != "" {
			fields = append(fields, zap.String("site", evt.Site))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.Bytes > 0 {
			fields = append(fields, zap.Int64("bytes", evt.Bytes))
		}
		if evt.Images > 0 {
			fields = append(fields, zap.Int64("images", evt.Images))
		}
		if evt.StatusClass != "" {
			fields = append(fields, zap.String("status_class", string(evt.StatusClass)))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StageImageFailed, progress.StageRunError:
			s.logger.Warn("progress", fields...)
		default:
			s.logger.Info("progress", fields...)
		}
	}
	return nil
}

// Close is a no-op; the logger outlives the sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
