// Package observer provides OTEL-based observability for the workshop
// runtime.
//
// It wraps Provider and Tool with instrumented versions that emit traces,
// metrics, and logs via OpenTelemetry, and implements workshop.Tracer for the
// agent loop's turn/step/tool spans. Export goes to any OTLP HTTP collector,
// configured by endpoint or by the standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/workshop/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// Counters
	TokenUsage     metric.Int64Counter
	CostTotal      metric.Float64Counter
	LLMRequests    metric.Int64Counter
	ToolExecutions metric.Int64Counter
	Turns          metric.Int64Counter

	// Histograms
	LLMDuration  metric.Float64Histogram
	ToolDuration metric.Float64Histogram
	TurnDuration metric.Float64Histogram

	Cost *CostCalculator
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP
// exporters. An empty endpoint defers to the standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc.); a non-empty one overrides them.
// pricing extends the built-in per-model cost table. Returns a shutdown
// function that must be called on application exit.
func Init(ctx context.Context, endpoint string, pricing map[string]ModelPricing) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("workshop")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	var traceOpts []otlptracehttp.Option
	var metricOpts []otlpmetrichttp.Option
	var logOpts []otlploghttp.Option
	if endpoint != "" {
		traceOpts = append(traceOpts, otlptracehttp.WithEndpointURL(endpoint))
		metricOpts = append(metricOpts, otlpmetrichttp.WithEndpointURL(endpoint))
		logOpts = append(logOpts, otlploghttp.WithEndpointURL(endpoint))
	}

	// Providers shut down in reverse start order; on a partial failure the
	// ones already started are torn down before returning.
	var started []func(context.Context) error
	unwind := func() {
		for i := len(started) - 1; i >= 0; i-- {
			_ = started[i](ctx)
		}
	}

	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	started = append(started, tp.Shutdown)

	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		unwind()
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	started = append(started, mp.Shutdown)

	logExp, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		unwind()
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)
	started = append(started, lp.Shutdown)

	inst, err := newInstruments(pricing)
	if err != nil {
		unwind()
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

// newInstruments creates every counter and histogram against the current
// global providers. Creation errors are collected so the caller sees the
// first failure rather than a partial set.
func newInstruments(pricing map[string]ModelPricing) (*Instruments, error) {
	meter := otel.Meter(scopeName)

	var errs []error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}
	fcounter := func(name, desc, unit string) metric.Float64Counter {
		c, err := meter.Float64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		errs = append(errs, err)
		return h
	}

	inst := &Instruments{
		Tracer: otel.Tracer(scopeName),
		Meter:  meter,
		Logger: global.GetLoggerProvider().Logger(scopeName),

		TokenUsage:     counter("llm.token.usage", "Total tokens consumed", "{token}"),
		CostTotal:      fcounter("llm.cost.total", "Cumulative LLM cost in USD", "USD"),
		LLMRequests:    counter("llm.requests", "LLM request count", "{request}"),
		ToolExecutions: counter("tool.executions", "Tool execution count", "{execution}"),
		Turns:          counter("turn.count", "Completed agent turns", "{turn}"),

		LLMDuration:  histogram("llm.duration", "LLM call duration"),
		ToolDuration: histogram("tool.duration", "Tool execution duration"),
		TurnDuration: histogram("turn.duration", "Agent turn duration"),

		Cost: NewCostCalculator(pricing),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return inst, nil
}
