// Package telemetry installs the global OpenTelemetry tracer provider from
// the telemetry: section of the configuration.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Exporter names accepted in telemetry.exporter.
const (
	ExporterNone   = "none"
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// DefaultTraceFile receives spans when the stdout exporter has no file set.
const DefaultTraceFile = "chatrelay_traces.log"

// Config is the telemetry: section of the configuration file.
type Config struct {
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP/HTTP collector URL, e.g.
	// http://localhost:4318/v1/traces.
	Endpoint string `yaml:"endpoint"`

	// File is the rotated span file for the stdout exporter.
	File string `yaml:"file"`

	// SampleRatio is the fraction of traces kept. Zero means all.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Validate reports unknown exporters and missing endpoints.
func (c Config) Validate() error {
	switch c.Exporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.Endpoint == "" {
			return errors.New("telemetry: endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("telemetry: unknown exporter %q", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0, 1], got %v", c.SampleRatio)
	}
	return nil
}

// ShutdownFunc flushes pending spans and releases exporter resources.
type ShutdownFunc func(context.Context) error

// Setup installs a tracer provider for cfg and returns its shutdown
// function. With no exporter the global no-op provider is left in place.
func Setup(ctx context.Context, cfg Config, version string) (ShutdownFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	var (
		exporter sdktrace.SpanExporter
		file     io.Closer
		err      error
	)
	switch cfg.Exporter {
	case ExporterOTLP:
		exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	case ExporterStdout:
		path := cfg.File
		if path == "" {
			path = DefaultTraceFile
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		file = lj
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(lj))
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("chatrelay"),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			err = errors.Join(err, file.Close())
		}
		return err
	}, nil
}
