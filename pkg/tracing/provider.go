package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	"github.com/emergent-company/branchgraph/internal/config"
)

// Module wires the global TracerProvider into the fx app. Every package that
// calls Start picks this provider up through the global otel API, so nothing
// downstream needs to depend on this package directly.
var Module = fx.Module("tracing",
	fx.Provide(NewTracerProvider),
	fx.Invoke(RegisterLifecycle),
)

// providerResult exposes the SDK provider (nil when tracing is disabled) so
// RegisterLifecycle can shut it down on stop without every caller needing to
// know whether tracing is active.
type providerResult struct {
	fx.Out

	SDKProvider *sdktrace.TracerProvider `name:"otelSDKProvider" optional:"true"`
}

// NewTracerProvider builds and globally registers a TracerProvider. When no
// OTLP endpoint is configured it installs a no-op provider so every span
// created via Start is free.
func NewTracerProvider(cfg *config.Config, log *slog.Logger) (providerResult, error) {
	oc := cfg.Otel

	if !oc.Enabled() {
		log.Info("otel tracing disabled", slog.String("reason", "OTEL_EXPORTER_OTLP_ENDPOINT not set"))
		otel.SetTracerProvider(noop.NewTracerProvider())
		return providerResult{}, nil
	}

	log.Info("otel tracing enabled",
		slog.String("endpoint", oc.ExporterEndpoint),
		slog.String("service", oc.ServiceName),
		slog.Float64("sampling_rate", oc.SamplingRate),
	)

	exp, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpointURL(oc.ExporterEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return providerResult{}, err
	}

	res, err := resource.New(context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(oc.ServiceName)),
		resource.WithFromEnv(),
		resource.WithProcess(),
	)
	if err != nil {
		log.Warn("otel resource detection failed", slog.String("error", err.Error()))
		res = resource.Empty()
	}

	var sampler sdktrace.Sampler
	if oc.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(oc.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)

	return providerResult{SDKProvider: tp}, nil
}

type providerParam struct {
	fx.In

	SDKProvider *sdktrace.TracerProvider `name:"otelSDKProvider" optional:"true"`
}

// RegisterLifecycle shuts the SDK provider down gracefully on app stop. A
// no-op when tracing was never enabled.
func RegisterLifecycle(lc fx.Lifecycle, p providerParam, log *slog.Logger) {
	if p.SDKProvider == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down otel tracer provider")
			return p.SDKProvider.Shutdown(ctx)
		},
	})
}
