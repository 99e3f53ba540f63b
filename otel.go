package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"
)

// initTelemetry wires the global trace, metric and log providers according
// to the configured exporter strategy and returns a shutdown func that
// flushes all three. Callers treat errors as degraded mode, not fatal.
func initTelemetry(ctx context.Context, logger *logrus.Logger, opts *Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(otelErrorHandler{logger})

	if opts.Telemetry.Exporter == "none" {
		return installNoopTelemetry(), nil
	}

	res, err := newTelemetryResource(opts.Telemetry.Service)
	if err != nil {
		return nil, err
	}

	traceExp, metricExp, logExp, err := newExporters(ctx, opts)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)

	return func(ctx context.Context) error {
		var errs []error
		if err := tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}, nil
}

// installNoopTelemetry points the globals at no-op providers. This backs
// --exporter=none and the degraded mode entered when exporter construction
// fails; the HTTP surface keeps serving either way.
func installNoopTelemetry() func(context.Context) error {
	otel.SetTracerProvider(tracenoop.NewTracerProvider())
	otel.SetMeterProvider(metricnoop.NewMeterProvider())
	global.SetLoggerProvider(lognoop.NewLoggerProvider())
	return func(context.Context) error { return nil }
}

func newTelemetryResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ResourceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	return res, nil
}

func newExporters(ctx context.Context, opts *Options) (sdktrace.SpanExporter, sdkmetric.Exporter, sdklog.Exporter, error) {
	switch opts.Telemetry.Exporter {
	case "stdout":
		return newStdoutExporters()
	case "otlp":
		if opts.Telemetry.Protocol == "grpc" {
			return newOTLPGRPCExporters(ctx, opts)
		}
		return newOTLPHTTPExporters(ctx, opts)
	default:
		return nil, nil, nil, fmt.Errorf("unknown exporter %q", opts.Telemetry.Exporter)
	}
}

func newStdoutExporters() (sdktrace.SpanExporter, sdkmetric.Exporter, sdklog.Exporter, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating stdout trace exporter: %w", err)
	}
	metricExp, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating stdout metric exporter: %w", err)
	}
	logExp, err := stdoutlog.New(stdoutlog.WithPrettyPrint())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating stdout log exporter: %w", err)
	}
	return traceExp, metricExp, logExp, nil
}

func newOTLPHTTPExporters(ctx context.Context, opts *Options) (sdktrace.SpanExporter, sdkmetric.Exporter, sdklog.Exporter, error) {
	endpoint := opts.collector.Host

	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	metricOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression),
	}
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if opts.Telemetry.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	} else {
		traceOpts = append(traceOpts, otlptracehttp.WithTLSClientConfig(&tls.Config{}))
		metricOpts = append(metricOpts, otlpmetrichttp.WithTLSClientConfig(&tls.Config{}))
		logOpts = append(logOpts, otlploghttp.WithTLSClientConfig(&tls.Config{}))
	}

	traceExp, err := otlptrace.New(ctx, otlptracehttp.NewClient(traceOpts...))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating OTLP HTTP trace exporter: %w", err)
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating OTLP HTTP metric exporter: %w", err)
	}
	logExp, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating OTLP HTTP log exporter: %w", err)
	}
	return traceExp, metricExp, logExp, nil
}

func newOTLPGRPCExporters(ctx context.Context, opts *Options) (sdktrace.SpanExporter, sdkmetric.Exporter, sdklog.Exporter, error) {
	endpoint := opts.collector.Host

	traceOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithCompressor(gzip.Name),
	}
	metricOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithCompressor(gzip.Name),
	}
	logOpts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithCompressor(gzip.Name),
	}
	if opts.Telemetry.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	} else {
		creds := credentials.NewClientTLSFromCert(nil, "")
		traceOpts = append(traceOpts, otlptracegrpc.WithTLSCredentials(creds))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithTLSCredentials(creds))
		logOpts = append(logOpts, otlploggrpc.WithTLSCredentials(creds))
	}

	traceExp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(traceOpts...))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating OTLP gRPC trace exporter: %w", err)
	}
	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating OTLP gRPC metric exporter: %w", err)
	}
	logExp, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating OTLP gRPC log exporter: %w", err)
	}
	return traceExp, metricExp, logExp, nil
}

// otelErrorHandler routes export failures into the process log. A collector
// outage shows up here; HTTP callers never see it.
type otelErrorHandler struct {
	log *logrus.Logger
}

func (h otelErrorHandler) Handle(err error) {
	h.log.WithError(err).Warn("telemetry export problem")
}
