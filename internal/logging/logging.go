// Package logging constructs the broker's zap logger. All output goes to
// stderr, per spec — stdout is reserved for the JSON-RPC wire.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction, populated from CLI flags.
type Options struct {
	// Verbosity: 0 = warn, 1 = info (-v), 2 = debug (-vv), 3 = debug with
	// caller info (-vvv).
	Verbosity int
	Quiet     bool
	LogDir    string
	LogFile   string
}

// New builds a *zap.Logger writing to stderr and, when LogDir/LogFile are
// set, additionally to a rotating-by-process log file under LogDir.
func New(opts Options) (*zap.Logger, error) {
	level := levelFor(opts)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		name := opts.LogFile
		if name == "" {
			name = fmt.Sprintf("acpd-%d.log", time.Now().Unix())
		}
		f, err := os.OpenFile(filepath.Join(opts.LogDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), level))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core)
	if opts.Verbosity >= 3 {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger, nil
}

func levelFor(opts Options) zapcore.Level {
	if opts.Quiet {
		return zapcore.ErrorLevel
	}
	switch {
	case opts.Verbosity >= 2:
		return zapcore.DebugLevel
	case opts.Verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}
