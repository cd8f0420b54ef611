// Package telemetry exports traces and logs over OTLP/HTTP when enabled
// through the environment.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config holds the OpenTelemetry settings.
type Config struct {
	Enabled        bool          `env:"OTEL_ENABLED"                       envDefault:"false"`
	ServiceName    string        `env:"OTEL_SERVICE_NAME"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"               envDefault:"dev"`
	Environment    string        `env:"ENVIRONMENT"                        envDefault:"local"`
	TracesEndpoint string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	LogsEndpoint   string        `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT"         envDefault:"5s"`
}

// LoadConfig reads Config from the environment. service is used when
// OTEL_SERVICE_NAME is unset.
func LoadConfig(service string) (Config, error) {
	cfg := Config{ServiceName: service}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing telemetry config: %w", err)
	}

	return cfg, nil
}

// Telemetry owns the providers installed by Initialize. A nil or disabled
// Telemetry is valid and does nothing.
type Telemetry struct {
	name   string
	traces *sdktrace.TracerProvider
	logs   *sdklog.LoggerProvider
}

// Initialize installs global tracer and logger providers for every endpoint
// that is configured.
func Initialize(ctx context.Context, cfg Config) (*Telemetry, error) {
	tel := &Telemetry{name: cfg.ServiceName}

	if !cfg.Enabled {
		return tel, nil
	}

	if cfg.TracesEndpoint == "" && cfg.LogsEndpoint == "" {
		slog.Warn("OpenTelemetry is enabled but no endpoint is configured")

		return tel, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.TracesEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.TracesEndpoint),
			otlptracehttp.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

		tel.traces = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)

		otel.SetTracerProvider(tel.traces)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if cfg.LogsEndpoint != "" {
		exporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(cfg.LogsEndpoint),
			otlploghttp.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to create OTLP log exporter: %w", err),
				tel.Shutdown(ctx),
			)
		}

		tel.logs = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
			sdklog.WithResource(res),
		)

		global.SetLoggerProvider(tel.logs)
	}

	slog.Info("OpenTelemetry initialized",
		"service", cfg.ServiceName,
		"traces_endpoint", cfg.TracesEndpoint,
		"logs_endpoint", cfg.LogsEndpoint,
	)

	return tel, nil
}

// Logger returns base, also exporting its records when log export is set up.
func (t *Telemetry) Logger(base *slog.Logger) *slog.Logger {
	if t == nil || t.logs == nil {
		return base
	}

	bridge := otelslog.NewHandler(t.name, otelslog.WithLoggerProvider(t.logs))

	return slog.New(fanout{base.Handler(), bridge})
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.traces != nil {
		errs = append(errs, t.traces.Shutdown(ctx))
	}

	if t.logs != nil {
		errs = append(errs, t.logs.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error

	for _, h := range f {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}

	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}

	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}

	return out
}
