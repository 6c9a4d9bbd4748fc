package workshop

import "context"

// Tracer is the tracing seam for turns, loop steps, specialist calls, and
// tool executions. The observer package supplies an OTEL-backed
// implementation; a nil Tracer on the agent skips span creation entirely.
type Tracer interface {
	// Start opens a span and returns a context carrying it. The returned
	// Span must be ended exactly once.
	Start(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span)
}

// Span is one traced operation.
type Span interface {
	// SetAttr attaches attributes after creation.
	SetAttr(attrs ...SpanAttr)
	// Event records a point-in-time annotation.
	Event(name string, attrs ...SpanAttr)
	// Error records err and marks the span failed.
	Error(err error)
	// End completes the span.
	End()
}

// SpanAttr is a key-value attribute on a span or event.
type SpanAttr struct {
	Key   string
	Value any
}

// StringAttr builds a string attribute.
func StringAttr(k, v string) SpanAttr {
	return SpanAttr{Key: k, Value: v}
}

// IntAttr builds an int attribute.
func IntAttr(k string, v int) SpanAttr {
	return SpanAttr{Key: k, Value: v}
}

// BoolAttr builds a bool attribute.
func BoolAttr(k string, v bool) SpanAttr {
	return SpanAttr{Key: k, Value: v}
}

// Float64Attr builds a float64 attribute.
func Float64Attr(k string, v float64) SpanAttr {
	return SpanAttr{Key: k, Value: v}
}
