package observer

import (
	"context"
	"time"

	workshop "github.com/nevindra/workshop"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WrapProvider instruments a provider: every chat call gets a span, token
// and cost counters, a duration sample, and a structured log record. model
// names the configured model for metric labels and pricing lookups.
func WrapProvider(inner workshop.Provider, model string, inst *Instruments) *ObservedProvider {
	return &ObservedProvider{inner: inner, inst: inst, model: model}
}

// ObservedProvider decorates a workshop.Provider.
type ObservedProvider struct {
	inner workshop.Provider
	inst  *Instruments
	model string
}

var _ workshop.Provider = (*ObservedProvider)(nil)

func (o *ObservedProvider) Name() string { return o.inner.Name() }

func (o *ObservedProvider) Chat(ctx context.Context, req workshop.ChatRequest) (workshop.ChatResponse, error) {
	spanName, method := "llm.chat", "chat"
	opts := []trace.SpanStartOption{trace.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
	)}
	if len(req.Tools) > 0 {
		names := make([]string, len(req.Tools))
		for i, t := range req.Tools {
			names[i] = t.Name
		}
		opts = append(opts, trace.WithAttributes(
			AttrToolCount.Int(len(req.Tools)),
			AttrToolNames.StringSlice(names),
		))
		spanName, method = "llm.chat_with_tools", "chat_with_tools"
	}

	ctx, span := o.inst.Tracer.Start(ctx, spanName, opts...)
	defer span.End()

	start := time.Now()
	resp, err := o.inner.Chat(ctx, req)
	o.record(ctx, span, method, markSpan(span, err), msSince(start), resp.Usage)
	return resp, err
}

func (o *ObservedProvider) ChatStream(ctx context.Context, req workshop.ChatRequest, ch chan<- workshop.StreamEvent) (workshop.ChatResponse, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "llm.chat_stream", trace.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
	))
	defer span.End()
	start := time.Now()

	// Forward events through an intermediate channel to count chunks. The
	// caller's ch is never closed here (the agent owns it and reuses it
	// across loop steps); only the intermediate channel is. Buffer it
	// generously so the inner provider never blocks on send while the
	// forwarding goroutine waits on a full caller channel.
	wrapped := make(chan workshop.StreamEvent, max(cap(ch), 64))
	chunks := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range wrapped {
			chunks++
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	resp, err := o.inner.ChatStream(ctx, req, wrapped)
	close(wrapped)
	<-done // chunk count is read only after the goroutine exits

	span.SetAttributes(AttrStreamChunks.Int(chunks))
	o.record(ctx, span, "chat_stream", markSpan(span, err), msSince(start), resp.Usage)
	return resp, err
}

// markSpan records err on the span and returns the metric status label.
func markSpan(span trace.Span, err error) string {
	if err == nil {
		return "ok"
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return "error"
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds())
}

func (o *ObservedProvider) record(ctx context.Context, span trace.Span, method, status string, durationMs float64, usage workshop.Usage) {
	cost := o.inst.Cost.Calculate(o.model, usage.InputTokens, usage.OutputTokens)

	span.SetAttributes(
		AttrTokensInput.Int(usage.InputTokens),
		AttrTokensOutput.Int(usage.OutputTokens),
		AttrCostUSD.Float64(cost),
	)

	base := []attribute.KeyValue{
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
	}
	withMethod := metric.WithAttributes(append(base, AttrLLMMethod.String(method))...)

	o.inst.TokenUsage.Add(ctx, int64(usage.InputTokens),
		metric.WithAttributes(append(base, attribute.String("direction", "input"))...))
	o.inst.TokenUsage.Add(ctx, int64(usage.OutputTokens),
		metric.WithAttributes(append(base, attribute.String("direction", "output"))...))
	o.inst.CostTotal.Add(ctx, cost, withMethod)
	o.inst.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(append(base, AttrLLMMethod.String(method), attribute.String("status", status))...))
	o.inst.LLMDuration.Record(ctx, durationMs, withMethod)

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("llm call completed"))
	rec.AddAttributes(
		otellog.String("llm.model", o.model),
		otellog.String("llm.provider", o.inner.Name()),
		otellog.String("llm.method", method),
		otellog.Int("llm.tokens.input", usage.InputTokens),
		otellog.Int("llm.tokens.output", usage.OutputTokens),
		otellog.Float64("llm.cost_usd", cost),
		otellog.Float64("llm.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}
