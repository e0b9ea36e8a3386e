// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap logger behind the application log file.
// Lines are human-readable and timestamp-prefixed; the file is opened in
// append mode and never rotated.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/p7m-converter/pkg/types"
)

// FileName is the log file created inside LogConfig.Dir.
const FileName = "app.log"

// New opens the log sink described by cfg and returns a logger writing to
// it. The returned close function flushes and closes the file.
func New(cfg types.LogConfig) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %s: %w", cfg.Dir, err)
	}

	path := filepath.Join(cfg.Dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(f), zapcore.InfoLevel),
	}
	if cfg.Verbose {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closeFn, nil
}

// encoderConfig renders "<time> - <LEVEL> - <message> <fields>".
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		NameKey:          "logger",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05,000"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " - ",
	}
}
