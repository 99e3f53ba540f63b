package main

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// otlpHandler decodes one OTLP/HTTP export request and hands it to consume.
// Exporters send protobuf unless the Content-Type says JSON, and may gzip
// either encoding.
func otlpHandler(newReq func() proto.Message, consume func(proto.Message)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var reader io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, "failed to decompress gzip data: "+err.Error(), http.StatusBadRequest)
				return
			}
			defer gz.Close()
			reader = gz
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			http.Error(w, "error reading request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		req := newReq()
		switch r.Header.Get("Content-Type") {
		case "application/json":
			err = protojson.Unmarshal(body, req)
		default:
			err = proto.Unmarshal(body, req)
		}
		if err != nil {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}

		consume(req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}
}

// initHTTPReceiver serves the three OTLP/HTTP export paths until ctx ends.
func initHTTPReceiver(ctx context.Context, port int, sink *Sink) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/traces", otlpHandler(
		func() proto.Message { return &collectortrace.ExportTraceServiceRequest{} },
		func(m proto.Message) { sink.ConsumeTraces(m.(*collectortrace.ExportTraceServiceRequest)) },
	))
	mux.HandleFunc("/v1/metrics", otlpHandler(
		func() proto.Message { return &collectormetrics.ExportMetricsServiceRequest{} },
		func(m proto.Message) { sink.ConsumeMetrics(m.(*collectormetrics.ExportMetricsServiceRequest)) },
	))
	mux.HandleFunc("/v1/logs", otlpHandler(
		func() proto.Message { return &collectorlogs.ExportLogsServiceRequest{} },
		func(m proto.Message) { sink.ConsumeLogs(m.(*collectorlogs.ExportLogsServiceRequest)) },
	))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Infof("OTLP/HTTP receiver listening on port %d", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("stopping HTTP receiver...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("error during HTTP shutdown: %v", err)
		}
	}()
}
