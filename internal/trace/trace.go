package trace

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "mdtoml"

// Config holds tracing configuration. Tracing stays on the global noop
// provider when Endpoint is empty.
type Config struct {
	Endpoint string `toml:"endpoint"` // host:port or full URL of the OTLP endpoint
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"` // sent as a bearer token
	Insecure bool   `toml:"insecure"`
}

func (c Config) Enabled() bool { return c.Endpoint != "" }

type otelErrorHandler struct{}

func (otelErrorHandler) Handle(err error) {
	slog.Error("otel error", "error", err)
}

func noopShutdown(context.Context) error { return nil }

func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled() {
		return noopShutdown, nil
	}
	otel.SetErrorHandler(otelErrorHandler{})

	var opts []otlptracehttp.Option
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.APIKey != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}))
	}

	slog.Debug("otlp exporter config", "endpoint", cfg.Endpoint, "url_path", cfg.URLPath, "has_api_key", cfg.APIKey != "")

	inner, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	// A one-shot CLI exits right after its work, so spans are exported
	// synchronously instead of batched.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&loggingExporter{inner: inner}),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// loggingExporter logs each export call and its outcome.
type loggingExporter struct {
	inner sdktrace.SpanExporter
}

func (e *loggingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	err := e.inner.ExportSpans(ctx, spans)
	if err != nil {
		slog.Error("otlp export failed", "count", len(spans), "error", err)
	} else {
		slog.Debug("otlp export ok", "count", len(spans))
	}
	return err
}

func (e *loggingExporter) Shutdown(ctx context.Context) error {
	return e.inner.Shutdown(ctx)
}

func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}
