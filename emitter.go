package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const metricsPrefix = "embers_"

// renderBuckets covers the plausible range of client frame-batch render
// times in milliseconds.
var renderBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500}

// Emitter is the single door telemetry leaves through. Every instrument is
// written twice: once to a dedicated Prometheus registry that backs the
// /metrics endpoint, and once to OTel instruments that ride the OTLP
// pipeline to the collector. Log events go to the event logger, which the
// OTel bridge also ships to the collector.
type Emitter struct {
	log *logrus.Logger
	reg *prometheus.Registry

	flameCount     prometheus.Gauge
	buttonClicks   *prometheus.CounterVec
	temperature    prometheus.Gauge
	sparks         prometheus.Counter
	renderDuration prometheus.Histogram
	logsGenerated  *prometheus.CounterVec
	uptime         prometheus.Gauge
	requests       *prometheus.CounterVec
	requestDur     *prometheus.HistogramVec

	otelFlameCount     metric.Int64Gauge
	otelButtonClicks   metric.Int64Counter
	otelTemperature    metric.Float64Gauge
	otelSparks         metric.Int64Counter
	otelRenderDuration metric.Float64Histogram
	otelLogsGenerated  metric.Int64Counter
	otelUptime         metric.Float64Gauge
	otelRequests       metric.Int64Counter
	otelRequestDur     metric.Float64Histogram
}

func NewEmitter(log *logrus.Logger, meter metric.Meter) (*Emitter, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	e := &Emitter{
		log: log,
		reg: reg,
		flameCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "flame_count",
			Help: "Current number of flames being rendered",
		}),
		buttonClicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "button_clicks_total",
			Help: "Number of UI button clicks by button type",
		}, []string{"button_type"}),
		temperature: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "fire_temperature_celsius",
			Help: "Simulated temperature of the fire",
		}),
		sparks: factory.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "sparks_total",
			Help: "Cumulative sparks thrown by the fire",
		}),
		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "render_duration_milliseconds",
			Help:    "Client-reported frame batch render duration",
			Buckets: renderBuckets,
		}),
		logsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "logs_generated_total",
			Help: "Number of synthetic log records emitted by trigger",
		}, []string{"trigger"}),
		uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "uptime_seconds",
			Help: "Seconds since the server started",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "http_requests_total",
			Help: "HTTP requests served",
		}, []string{"path", "method", "code"}),
		requestDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricsPrefix + "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}

	if err := e.initOTelInstruments(meter); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Emitter) initOTelInstruments(meter metric.Meter) error {
	var err error

	e.otelFlameCount, err = meter.Int64Gauge(metricsPrefix+"flame_count",
		metric.WithDescription("Current number of flames being rendered"))
	if err != nil {
		return err
	}

	e.otelButtonClicks, err = meter.Int64Counter(metricsPrefix+"button_clicks_total",
		metric.WithDescription("Number of UI button clicks by button type"))
	if err != nil {
		return err
	}

	e.otelTemperature, err = meter.Float64Gauge(metricsPrefix+"fire_temperature_celsius",
		metric.WithDescription("Simulated temperature of the fire"))
	if err != nil {
		return err
	}

	e.otelSparks, err = meter.Int64Counter(metricsPrefix+"sparks_total",
		metric.WithDescription("Cumulative sparks thrown by the fire"))
	if err != nil {
		return err
	}

	e.otelRenderDuration, err = meter.Float64Histogram(metricsPrefix+"render_duration_milliseconds",
		metric.WithDescription("Client-reported frame batch render duration"),
		metric.WithExplicitBucketBoundaries(renderBuckets...))
	if err != nil {
		return err
	}

	e.otelLogsGenerated, err = meter.Int64Counter(metricsPrefix+"logs_generated_total",
		metric.WithDescription("Number of synthetic log records emitted by trigger"))
	if err != nil {
		return err
	}

	e.otelUptime, err = meter.Float64Gauge(metricsPrefix+"uptime_seconds",
		metric.WithDescription("Seconds since the server started"))
	if err != nil {
		return err
	}

	e.otelRequests, err = meter.Int64Counter(metricsPrefix+"http_requests_total",
		metric.WithDescription("HTTP requests served"))
	if err != nil {
		return err
	}

	e.otelRequestDur, err = meter.Float64Histogram(metricsPrefix+"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"))
	if err != nil {
		return err
	}

	return nil
}

// Registry exposes the scrape registry for the /metrics handler and tests.
func (e *Emitter) Registry() *prometheus.Registry {
	return e.reg
}

// Event emits one structured log record through the event logger.
func (e *Emitter) Event(level logrus.Level, msg string, fields logrus.Fields) {
	e.log.WithFields(fields).Log(level, msg)
}

func (e *Emitter) SetFlameCount(ctx context.Context, count int) {
	e.flameCount.Set(float64(count))
	e.otelFlameCount.Record(ctx, int64(count))
}

func (e *Emitter) RecordButtonClick(ctx context.Context, buttonType string) {
	e.buttonClicks.WithLabelValues(buttonType).Inc()
	e.otelButtonClicks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("button_type", buttonType)))
}

func (e *Emitter) SetTemperature(ctx context.Context, celsius float64) {
	e.temperature.Set(celsius)
	e.otelTemperature.Record(ctx, celsius)
}

// AddSparks accumulates sparks. Counters only move forward; a negative
// increment is dropped and logged rather than poisoning the series.
func (e *Emitter) AddSparks(ctx context.Context, n int) {
	if n < 0 {
		e.log.WithField("sparks", n).Error("dropping negative spark increment")
		return
	}
	e.sparks.Add(float64(n))
	e.otelSparks.Add(ctx, int64(n))
}

func (e *Emitter) ObserveRenderDuration(ctx context.Context, ms float64) {
	e.renderDuration.Observe(ms)
	e.otelRenderDuration.Record(ctx, ms)
}

func (e *Emitter) CountGeneratedLogs(ctx context.Context, trigger string, n int) {
	if n <= 0 {
		return
	}
	e.logsGenerated.WithLabelValues(trigger).Add(float64(n))
	e.otelLogsGenerated.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (e *Emitter) SetUptime(ctx context.Context, seconds float64) {
	e.uptime.Set(seconds)
	e.otelUptime.Record(ctx, seconds)
}

func (e *Emitter) CountRequest(ctx context.Context, path, method, code string) {
	e.requests.WithLabelValues(path, method, code).Inc()
	e.otelRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("method", method),
		attribute.String("code", code)))
}

func (e *Emitter) ObserveRequestDuration(ctx context.Context, path string, seconds float64) {
	e.requestDur.WithLabelValues(path).Observe(seconds)
	e.otelRequestDur.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("path", path)))
}
