package statemachine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
	"go.opentelemetry.io/otel/attribute"
)

// invoker runs user guards and actions. Whatever they do, including panicking,
// comes back as a plain error value.
type invoker[C any] struct {
	machine string
}

// guard evaluates the transition's guard. Unguarded transitions always pass.
// A guard that errors or panics does not pass; the error is a *GuardError.
func (inv invoker[C]) guard(ctx context.Context, tr Transition[C], c C, ev Event) (bool, error) {
	if tr.Guard == nil {
		return true, nil
	}

	label := tr.String()

	ctx, span := startGuardSpan(ctx, tr.Guard.Name, label)
	start := time.Now()

	pass, err := callGuard(ctx, tr.Guard.Fn, c, ev)

	guardDuration.
		WithLabelValues(sanitizeLabel(inv.machine), tr.Guard.Name, guardResultLabel(pass, err)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		err = &GuardError{Guard: tr.Guard.Name, Transition: label, Err: err}

		logger.Get(ctx).Debug("guard error",
			"machine", inv.machine,
			"guard", tr.Guard.Name,
			"transition", label,
			"error", err)

		endSpan(span, err)

		return false, err
	}

	span.SetAttributes(attribute.Bool("pass", pass))
	endSpan(span, nil)

	return pass, nil
}

// actions runs the transition's actions in order and stops at the first
// failure, returning its index and a *ActionError. index is -1 on success.
func (inv invoker[C]) actions(ctx context.Context, tr Transition[C], c C, ev Event) (int, error) {
	label := tr.String()

	for i, action := range tr.Actions {
		actionCtx, span := startActionSpan(ctx, action.Name, i, label)
		start := time.Now()

		err := callAction(actionCtx, action.Fn, c, ev)

		actionDuration.
			WithLabelValues(sanitizeLabel(inv.machine), action.Name, successLabel(err)).
			Observe(time.Since(start).Seconds())

		if err != nil {
			err = logger.AnnotateError(
				&ActionError{Action: action.Name, Index: i, Err: err},
				"machine", inv.machine,
				"transition", label,
			)

			endSpan(span, err)

			return i, err
		}

		endSpan(span, nil)
	}

	return -1, nil
}

func callGuard[C any](ctx context.Context, fn GuardFunc[C], c C, ev Event) (pass bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			pass = false
			err = panicError(r)
		}
	}()

	return fn(ctx, c, ev)
}

func callAction[C any](ctx context.Context, fn ActionFunc[C], c C, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	return fn(ctx, c, ev)
}

func panicError(r any) error {
	if e, ok := r.(error); ok {
		return fmt.Errorf("%w: %w\n%s", ErrPanic, e, debug.Stack())
	}

	return fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
}
