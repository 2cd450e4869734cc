package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/slidesense"

// Span attribute keys for detection spans. The utterance text itself is
// never attached.
const (
	AttrSource       = attribute.Key("slidesense.source")
	AttrUtteranceLen = attribute.Key("slidesense.utterance.length")
	AttrKind         = attribute.Key("slidesense.result.kind")
	AttrCommand      = attribute.Key("slidesense.result.command")
	AttrConfidence   = attribute.Key("slidesense.result.confidence")
)

// Tracer returns the slidesense tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartDetectionSpan starts the span wrapping the classification of one
// utterance read from source.
func StartDetectionSpan(ctx context.Context, source string, utteranceLen int) (context.Context, trace.Span) {
	return StartSpan(ctx, "detect",
		trace.WithAttributes(
			AttrSource.String(source),
			AttrUtteranceLen.Int(utteranceLen),
		),
	)
}

// SetDetectionOutcome annotates a detection span with the classification
// result. command may be empty.
func SetDetectionOutcome(span trace.Span, kind, command string, confidence int) {
	attrs := []attribute.KeyValue{AttrKind.String(kind)}
	if command != "" {
		attrs = append(attrs, AttrCommand.String(command), AttrConfidence.Int(confidence))
	}
	span.SetAttributes(attrs...)
}

// CorrelationID returns the trace ID of the span in ctx, or "" without one.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
