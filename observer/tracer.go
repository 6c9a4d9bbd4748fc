package observer

import (
	"context"
	"fmt"

	workshop "github.com/nevindra/workshop"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer adapts the global OTEL TracerProvider to the workshop.Tracer
// seam. Without a prior Init the global provider is a no-op, so spans cost
// nothing.
func NewTracer() workshop.Tracer {
	return tracerAdapter{tracer: otel.Tracer(scopeName)}
}

type tracerAdapter struct {
	tracer trace.Tracer
}

var _ workshop.Tracer = tracerAdapter{}

func (t tracerAdapter) Start(ctx context.Context, name string, attrs ...workshop.SpanAttr) (context.Context, workshop.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(otelAttrs(attrs)...))
	return ctx, spanAdapter{span: span}
}

type spanAdapter struct {
	span trace.Span
}

var _ workshop.Span = spanAdapter{}

func (s spanAdapter) SetAttr(attrs ...workshop.SpanAttr) {
	s.span.SetAttributes(otelAttrs(attrs)...)
}

func (s spanAdapter) Event(name string, attrs ...workshop.SpanAttr) {
	s.span.AddEvent(name, trace.WithAttributes(otelAttrs(attrs)...))
}

func (s spanAdapter) Error(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s spanAdapter) End() {
	s.span.End()
}

// otelAttrs converts seam attributes to OTEL key-values. Unsupported value
// types are stringified rather than dropped.
func otelAttrs(attrs []workshop.SpanAttr) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			out[i] = attribute.String(a.Key, v)
		case int:
			out[i] = attribute.Int(a.Key, v)
		case int64:
			out[i] = attribute.Int64(a.Key, v)
		case float64:
			out[i] = attribute.Float64(a.Key, v)
		case bool:
			out[i] = attribute.Bool(a.Key, v)
		default:
			out[i] = attribute.String(a.Key, fmt.Sprintf("%v", v))
		}
	}
	return out
}
