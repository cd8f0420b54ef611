package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// startDispatchSpan creates the root span of a dispatch. The caller is
// responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startDispatchSpan(ctx context.Context, machine, id string, state State, ev Event) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.dispatch")
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("instance_id", id),
		attribute.String("state", string(state)),
		attribute.String("event", string(ev.Name)),
	)

	return ctx, span
}

// startGuardSpan creates a child span for one guard evaluation.
//
//nolint:spancheck // Span lifecycle managed by caller
func startGuardSpan(ctx context.Context, guard string, tr string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "guard."+guard)
	span.SetAttributes(
		attribute.String("guard", guard),
		attribute.String("transition", tr),
	)

	return ctx, span
}

// startActionSpan creates a child span for one action.
//
//nolint:spancheck // Span lifecycle managed by caller
func startActionSpan(ctx context.Context, action string, index int, tr string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "action."+action)
	span.SetAttributes(
		attribute.String("action", action),
		attribute.Int("action_index", index),
		attribute.String("transition", tr),
	)

	return ctx, span
}

// endDispatchSpan annotates the span with the outcome and ends it.
func endDispatchSpan(span trace.Span, o Outcome) {
	span.SetAttributes(
		attribute.String("outcome", o.Kind.String()),
		attribute.String("final_state", string(o.State)),
	)

	switch o.Kind {
	case Rejected:
		span.SetAttributes(attribute.String("reason", o.Reason.String()))
	case Failed:
		span.RecordError(o.Cause)
		span.SetStatus(codes.Error, o.Cause.Error())
	case Committed:
		span.SetAttributes(attribute.String("from_state", string(o.Transition.From)))
	}

	span.End()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
