package scheduler

import (
	"time"

	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron_"+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron_"+msg, append(keysAndValues, "error", err)...)
}

// period fires every d without cron.Every's whole-second rounding, so
// sub-second interval units work.
type period time.Duration

func (p period) Next(t time.Time) time.Time {
	return t.Add(time.Duration(p))
}
