package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file created under the log directory.
const FileName = "webping.log"

// NewLogger writes JSON logs to a rotating file in logDir and mirrors them to
// stderr. debug lowers the level from info to debug.
func NewLogger(logDir string, debug bool) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		level.SetLevel(zap.DebugLevel)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), file, level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), level),
	)
	return zap.New(core, zap.AddCaller()).With(zap.String("service", "web-ping-api")), nil
}
