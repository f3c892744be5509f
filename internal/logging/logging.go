// Package logging sets up the process-wide zap logger once, mirroring
// eliot's liblogging.set_up_logging: a console encoder for local
// development and a structured JSON encoder for deployed environments,
// guarded so repeated setup calls (e.g. from tests) are harmless.
package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once   sync.Once
	logger *zap.Logger
)

// Setup builds the process logger for the given level name ("debug",
// "info", "warn", "error") and format ("console" or "json"). Only the first
// call in a process takes effect; subsequent calls return the logger built
// on the first call, matching liblogging's once-per-process guard.
func Setup(level, format string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		logger, err = build(level, format)
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("logging: setup failed on a prior call")
	}
	return logger, nil
}

func build(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	case "console", "":
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), zapLevel)
	return zap.New(core, zap.AddCaller()), nil
}
