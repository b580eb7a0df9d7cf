// Package telemetry — трейсинг OTEL: экспорт OTLP/HTTP и глобальные пропагаторы.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const defaultEndpoint = "localhost:4318"

// Options — параметры провайдера трейсинга.
type Options struct {
	ServiceName string
	Version     string // версия манифеста воркера или сборки
	Endpoint    string
	SampleRatio float64
}

// Shutdown — сброс буфера спанов и остановка провайдера.
type Shutdown func(context.Context) error

// Noop — завершение для выключенного трейсинга.
func Noop(context.Context) error { return nil }

// SetupTracing — OTLP/HTTP экспорт без TLS, семплинг от родителя с долей opts.SampleRatio.
func SetupTracing(ctx context.Context, opts Options) (Shutdown, error) {
	opts = normalize(opts)

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(opts.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
		sdktrace.WithResource(newResource(opts)),
	)

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		),
	)

	return traceProvider.Shutdown, nil
}

// normalize — дефолтный endpoint и доля семплинга в [0..1].
func normalize(opts Options) Options {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "resto-sync"
	}
	switch {
	case opts.SampleRatio < 0:
		opts.SampleRatio = 0
	case opts.SampleRatio > 1:
		opts.SampleRatio = 1
	}
	return opts
}

func newResource(opts Options) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		attribute.String("telemetry.sdk", "opentelemetry"),
	}
	if opts.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.Version))
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(host))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
