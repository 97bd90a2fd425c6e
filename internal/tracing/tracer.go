// Package tracing builds the OpenTelemetry tracer used for save round trips
// and conflict resolution spans. Disabled tracing yields a no-op tracer.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName имя инструментирования
const TracerName = "github.com/iudanet/estisync"

// ExporterType тип экспортера спанов
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config настройки трассировки
type Config struct {
	Output       io.Writer    `yaml:"-"`
	Exporter     ExporterType `yaml:"exporter"`
	OTLPEndpoint string       `yaml:"otlp_endpoint"`
	ServiceName  string       `yaml:"service_name"`
	SampleRate   float64      `yaml:"sample_rate"`
}

// DefaultConfig трассировка выключена
func DefaultConfig() Config {
	return Config{
		Exporter:    ExporterNone,
		ServiceName: "estisync",
		SampleRate:  1.0,
	}
}

// Provider владеет экспортером и выдает трассировщик
type Provider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New создает провайдер по конфигурации
func New(ctx context.Context, cfg Config, version string) (*Provider, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	// Без resource.Default(): его schema URL может не совпасть с версией semconv
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	return &Provider{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(version)),
		provider: provider,
	}, nil
}

func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}

// Tracer трассировщик для session.WithTracer и серверных обработчиков
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown сбрасывает накопленные спаны и останавливает экспортер
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}

// DocumentAttrs атрибуты спана документа
func DocumentAttrs(documentID string, revision int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("document.id", documentID),
		attribute.Int64("document.revision", revision),
	}
}
