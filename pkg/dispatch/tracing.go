package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "goclaw.dispatch"

const (
	attrSignal         = "dispatch.signal"
	attrSignalID       = "dispatch.signal_id"
	attrMode           = "dispatch.mode"
	attrSyncReceivers  = "dispatch.receivers.sync"
	attrAsyncReceivers = "dispatch.receivers.async"
	attrFailures       = "dispatch.failures"
	eventFailure       = "receiver.failure"
)

func dispatchTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (s *Signal) startSpan(ctx context.Context, m mode, syncs, asyncs int) (context.Context, trace.Span) {
	return dispatchTracer().Start(ctx, "signal."+string(m),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrSignal, s.name),
			attribute.String(attrSignalID, s.id),
			attribute.String(attrMode, string(m)),
			attribute.Int(attrSyncReceivers, syncs),
			attribute.Int(attrAsyncReceivers, asyncs),
		),
	)
}

func endSpan(span trace.Span, responses Responses, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if n := responses.Failures(); n > 0 {
		span.SetAttributes(attribute.Int(attrFailures, n))
	}
	span.End()
}

func recordFailureEvent(ctx context.Context, receiver any, err error) {
	trace.SpanFromContext(ctx).AddEvent(eventFailure, trace.WithAttributes(
		attribute.String("receiver", Describe(receiver)),
		attribute.String("error", err.Error()),
	))
}
