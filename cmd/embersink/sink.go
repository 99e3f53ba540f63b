package main

import (
	"fmt"
	"sync"

	cuckoo "github.com/panmari/cuckoofilter"
	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

// Sink tallies everything the OTLP receivers hand it. Traces and spans are
// deduplicated with cuckoo filters so re-exported batches don't inflate the
// session numbers; logs and metric points are just counted.
type Sink struct {
	mu sync.Mutex

	traces      *cuckoo.Filter
	spans       *cuckoo.Filter
	metricNames *cuckoo.Filter

	distinctTraces  int
	distinctSpans   int
	distinctMetrics int
	metricPoints    int
	logRecords      int
	severities      map[string]int

	spanRate  *RateTracker
	pointRate *RateTracker
	logRate   *RateTracker
}

func NewSink() *Sink {
	return &Sink{
		traces:      cuckoo.NewFilter(1000000),
		spans:       cuckoo.NewFilter(100000000),
		metricNames: cuckoo.NewFilter(100000),
		severities:  make(map[string]int),
		spanRate:    NewRateTracker("spans"),
		pointRate:   NewRateTracker("metric points"),
		logRate:     NewRateTracker("log records"),
	}
}

func (s *Sink) ConsumeTraces(req *collectortrace.ExportTraceServiceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch int
	for _, resource := range req.GetResourceSpans() {
		for _, scope := range resource.GetScopeSpans() {
			for _, span := range scope.GetSpans() {
				batch++
				if !s.traces.Lookup(span.GetTraceId()) {
					s.traces.Insert(span.GetTraceId())
					s.distinctTraces++
				}
				if !s.spans.Lookup(span.GetSpanId()) {
					s.spans.Insert(span.GetSpanId())
					s.distinctSpans++
				}
			}
		}
	}
	s.spanRate.Track(batch)
}

func (s *Sink) ConsumeMetrics(req *collectormetrics.ExportMetricsServiceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch int
	for _, resource := range req.GetResourceMetrics() {
		for _, scope := range resource.GetScopeMetrics() {
			for _, m := range scope.GetMetrics() {
				name := []byte(m.GetName())
				if !s.metricNames.Lookup(name) {
					s.metricNames.Insert(name)
					s.distinctMetrics++
				}
				batch += datapointCount(m)
			}
		}
	}
	s.metricPoints += batch
	s.pointRate.Track(batch)
}

func (s *Sink) ConsumeLogs(req *collectorlogs.ExportLogsServiceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch int
	for _, resource := range req.GetResourceLogs() {
		for _, scope := range resource.GetScopeLogs() {
			for _, rec := range scope.GetLogRecords() {
				batch++
				sev := rec.GetSeverityText()
				if sev == "" {
					sev = rec.GetSeverityNumber().String()
				}
				s.severities[sev]++
			}
		}
	}
	s.logRecords += batch
	s.logRate.Track(batch)
}

func datapointCount(m *metricspb.Metric) int {
	switch {
	case m.GetGauge() != nil:
		return len(m.GetGauge().GetDataPoints())
	case m.GetSum() != nil:
		return len(m.GetSum().GetDataPoints())
	case m.GetHistogram() != nil:
		return len(m.GetHistogram().GetDataPoints())
	case m.GetExponentialHistogram() != nil:
		return len(m.GetExponentialHistogram().GetDataPoints())
	case m.GetSummary() != nil:
		return len(m.GetSummary().GetDataPoints())
	}
	return 0
}

// Summary describes the whole session; printed once at shutdown.
func (s *Sink) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := fmt.Sprintf("%d traces, %d spans, %d metric names, %d metric points, %d log records",
		s.distinctTraces, s.distinctSpans, s.distinctMetrics, s.metricPoints, s.logRecords)
	if len(s.severities) > 0 {
		out += " (by severity:"
		for sev, n := range s.severities {
			out += fmt.Sprintf(" %s=%d", sev, n)
		}
		out += ")"
	}
	return out
}
