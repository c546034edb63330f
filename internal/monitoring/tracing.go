package monitoring

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "wrongsecrets-balancer"

// Tracer is a noop tracer until a TracerProvider is registered.
var Tracer = otel.Tracer(tracerName)

// StartTeamSpan starts a span for an operation on a single team.
// Callers must call span.End() when the operation completes.
func StartTeamSpan(ctx context.Context, spanName, team, namespace string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("balancer.team", team),
			attribute.String("k8s.namespace", namespace),
		),
	)
}

// StartChildSpan starts a child span under the current trace context.
func StartChildSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordSpanError records err on span and marks it failed. A nil err is ignored.
func RecordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
