package statemachine

import (
	"context"
	"log/slog"

	"github.com/amp-labs/amp-fsm/logger"
)

// LoggingListener logs every outcome: committed at Info, rejected at Warn and
// failed at Error.
type LoggingListener struct {
	// Logger overrides the logger taken from the context.
	Logger *slog.Logger
}

// NewLoggingListener creates a listener that logs through the context logger.
func NewLoggingListener() *LoggingListener {
	return &LoggingListener{}
}

func (l *LoggingListener) Observe(ctx context.Context, o Outcome) {
	log := l.Logger
	if log == nil {
		log = logger.Get(ctx)
	}

	fields := []any{
		"machine", o.Machine,
		"event", string(o.Event.Name),
		"state", string(o.State),
		"duration_ms", o.Duration.Milliseconds(),
	}

	switch o.Kind {
	case Committed:
		fields = append(fields,
			"from_state", string(o.Transition.From),
			"to_state", string(o.Transition.To),
		)

		log.InfoContext(ctx, "Transition committed", fields...)
	case Rejected:
		fields = append(fields, "reason", o.Reason.String())
		if len(o.GuardErrors) > 0 {
			fields = append(fields, "guard_errors", len(o.GuardErrors))
		}

		log.WarnContext(ctx, "Event rejected", fields...)
	case Failed:
		fields = append(fields,
			"action_index", o.ActionIndex,
			"action", o.Action,
			"error", o.Cause,
		)

		log.ErrorContext(ctx, "Dispatch failed", fields...)
	}
}
