// Package notify delivers alert messages to humans.
package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi sends to every notifier and returns the combined errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, title, text))
	}
	return errs
}

// Log writes alerts to the application log. It is always on, so alerts are
// visible even without a chat webhook.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(ctx context.Context, title, text string) error {
	if l.Logger != nil {
		l.Logger.Warn("alert", zap.String("title", title), zap.String("text", text))
	}
	return nil
}
