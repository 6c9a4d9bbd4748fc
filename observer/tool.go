package observer

import (
	"context"
	"encoding/json"
	"time"

	workshop "github.com/nevindra/workshop"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WrapTool instruments a tool: every Execute gets a span, an execution
// counter increment, a duration sample, and a structured log record.
func WrapTool(inner workshop.Tool, inst *Instruments) *ObservedTool {
	return &ObservedTool{inner: inner, inst: inst}
}

// ObservedTool decorates a workshop.Tool; definitions pass through
// untouched.
type ObservedTool struct {
	inner workshop.Tool
	inst  *Instruments
}

var _ workshop.Tool = (*ObservedTool)(nil)

func (o *ObservedTool) Definitions() []workshop.ToolDefinition {
	return o.inner.Definitions()
}

func (o *ObservedTool) Execute(ctx context.Context, name string, args json.RawMessage) (workshop.ToolResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		AttrToolName.String(name),
	))
	defer span.End()

	start := time.Now()
	result, err := o.inner.Execute(ctx, name, args)
	elapsed := float64(time.Since(start).Milliseconds())

	status := toolStatus(result, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		AttrToolStatus.String(status),
		AttrToolResultLength.Int(len(result.Content)),
	)

	o.inst.ToolExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrToolName.String(name),
		attribute.String("status", status),
	))
	o.inst.ToolDuration.Record(ctx, elapsed, metric.WithAttributes(
		AttrToolName.String(name),
	))
	o.logExecution(ctx, name, status, len(result.Content), elapsed)

	return result, err
}

// toolStatus distinguishes transport failures (error) from captured tool
// failures (tool_error), mirroring how the loop treats the two.
func toolStatus(result workshop.ToolResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case result.Error != "":
		return "tool_error"
	default:
		return "ok"
	}
}

func (o *ObservedTool) logExecution(ctx context.Context, name, status string, resultLen int, ms float64) {
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("tool executed"))
	rec.AddAttributes(
		otellog.String("tool.name", name),
		otellog.String("tool.status", status),
		otellog.Int("tool.result_length", resultLen),
		otellog.Float64("tool.duration_ms", ms),
	)
	o.inst.Logger.Emit(ctx, rec)
}
