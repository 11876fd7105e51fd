// Package observability wires OpenTelemetry trace export into Genkit's
// TracerProvider.
//
// Spans go to a local collector over OTLP/HTTP (agent mode). The collector
// handles authentication and forwarding, keeps a local buffer, and retries;
// the application never talks to a tracing backend directly.
//
// Configuration lives under the `telemetry` key of the config file:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "ferrite"
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ferrite-ai/ferrite/internal/config"
	"github.com/ferrite-ai/ferrite/internal/log"
)

// DefaultEndpoint is the default local collector OTLP/HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Setup registers an OTLP span exporter with Genkit's TracerProvider and
// returns a shutdown function that flushes pending spans.
//
// A disabled config or an exporter construction failure yields a no-op
// shutdown: tracing is never allowed to take the server down.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger log.Logger) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled {
		return noop, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Genkit's TracerProvider reads the service identity from the OTEL
	// environment, not from exporter options.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating otlp exporter failed, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
