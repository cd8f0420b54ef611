package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// AnnotateError attaches slog key/value pairs to err. Loggers configured by this
// package lift the pairs into the record when the error is logged.
// Returns nil if err is nil.
func AnnotateError(err error, args ...any) error {
	if err == nil {
		return nil
	}

	r := slog.NewRecord(time.Now(), slog.LevelDebug, "", 0)
	r.Add(args...)

	var errAttrs []slog.Attr

	r.Attrs(func(attr slog.Attr) bool {
		errAttrs = append(errAttrs, attr)

		return true
	})

	return &annotatedError{
		err:   err,
		attrs: errAttrs,
	}
}

// annotatedError is an error carrying structured logging attributes.
type annotatedError struct {
	err   error
	attrs []slog.Attr
}

func (s *annotatedError) Error() string {
	return s.err.Error()
}

func (s *annotatedError) Unwrap() error {
	return s.err
}

var _ error = (*annotatedError)(nil)

// annotatingHandler decorates a handler so that attributes attached with
// AnnotateError show up next to the error in the record.
type annotatingHandler struct {
	inner slog.Handler
}

var _ slog.Handler = (*annotatingHandler)(nil)

func (s *annotatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.inner.Enabled(ctx, level)
}

func (s *annotatingHandler) Handle(ctx context.Context, record slog.Record) error {
	var (
		baseAttrs []slog.Attr
		errAttrs  []slog.Attr
	)

	record.Attrs(func(attr slog.Attr) bool {
		if err, ok := attr.Value.Any().(error); ok {
			var se *annotatedError
			if errors.As(err, &se) {
				errAttrs = append(errAttrs, se.attrs...)
			}
		}

		baseAttrs = append(baseAttrs, attr)

		return true
	})

	if len(errAttrs) == 0 {
		return s.inner.Handle(ctx, record)
	}

	r := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	r.AddAttrs(baseAttrs...)
	r.AddAttrs(errAttrs...)

	return s.inner.Handle(ctx, r)
}

func (s *annotatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &annotatingHandler{inner: s.inner.WithAttrs(attrs)}
}

func (s *annotatingHandler) WithGroup(name string) slog.Handler {
	return &annotatingHandler{inner: s.inner.WithGroup(name)}
}
