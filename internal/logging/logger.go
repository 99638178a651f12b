// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	logger, err := config(development).Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// NewWithFile builds a logger that writes to the console and, when path is
// non-empty, duplicates operator output into the given log file.
func NewWithFile(development bool, path string) (*zap.Logger, error) {
	if path == "" {
		return New(development)
	}
	cfg := config(development)
	cfg.OutputPaths = append(cfg.OutputPaths, path)
	cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, path)
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger with file sink: %w", err)
	}
	return logger, nil
}

func config(development bool) zap.Config {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg
}
