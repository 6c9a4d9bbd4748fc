package observer

import (
	"context"
	"time"

	workshop "github.com/nevindra/workshop"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
)

// RecordTurn emits turn-level metrics and a structured log entry for one
// completed agent turn. The remote server calls it on turn exit; status is
// "ok", "error" or "cancelled".
func (i *Instruments) RecordTurn(ctx context.Context, sessionID, userID, status string, d time.Duration, result workshop.TurnResult) {
	durationMs := float64(d.Milliseconds())

	i.Turns.Add(ctx, 1, metric.WithAttributes(
		AttrSessionUser.String(userID),
		attribute.String("status", status),
	))
	i.TurnDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrSessionUser.String(userID),
	))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("turn completed"))
	rec.AddAttributes(
		otellog.String("session.id", sessionID),
		otellog.String("session.user", userID),
		otellog.String("turn.status", status),
		otellog.Int("turn.steps", result.Steps),
		otellog.Int("llm.tokens.input", result.Usage.InputTokens),
		otellog.Int("llm.tokens.output", result.Usage.OutputTokens),
		otellog.Float64("turn.duration_ms", durationMs),
	)
	i.Logger.Emit(ctx, rec)
}
