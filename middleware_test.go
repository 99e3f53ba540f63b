package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func newMiddlewareRouter(t *testing.T) (*mux.Router, *Emitter) {
	t.Helper()
	em, _ := newTestEmitter(t)
	r := mux.NewRouter()
	r.Use(withTelemetry(em.log, em))
	r.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}).Methods(http.MethodGet)
	r.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	return r, em
}

func Test_Middleware_PanicRecovery(t *testing.T) {
	router, _ := newMiddlewareRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("panicking handler returned status %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding panic response: %v", err)
	}
	if body.Success {
		t.Error("panic response reported success")
	}
	if body.Error == "" {
		t.Error("panic response carried no error message")
	}

	// the server keeps serving after a recovered panic
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("request after panic returned status %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func Test_Middleware_PanicIsLogged(t *testing.T) {
	em, hook := newTestEmitter(t)
	router := mux.NewRouter()
	router.Use(withTelemetry(em.log, em))
	router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["panic"] != nil {
			found = true
		}
	}
	if !found {
		t.Error("expected an error log entry describing the panic")
	}
}

func Test_Middleware_RequestMetrics(t *testing.T) {
	router, em := newMiddlewareRouter(t)

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if got := testutil.ToFloat64(em.requests.WithLabelValues("/ok", "GET", "204")); got != 2 {
		t.Errorf("requests{/ok,GET,204} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(em.requests.WithLabelValues("/boom", "GET", "500")); got != 1 {
		t.Errorf("requests{/boom,GET,500} = %v, want 1", got)
	}
}

func Test_Middleware_RequestIDHeader(t *testing.T) {
	router, _ := newMiddlewareRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response missing X-Request-Id header")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-Id", "fireside-42")
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "fireside-42" {
		t.Errorf("X-Request-Id = %q, want the caller's id echoed back", got)
	}
}

func Test_Middleware_SpanExported(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	// routes built after the real provider lands must trace through it,
	// even when another provider was installed earlier in the process
	otel.SetTracerProvider(tracenoop.NewTracerProvider())
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	handler, _, _ := newTestServer(t)

	rec := postJSON(t, handler, "/api/flames", `{"count": 15, "action": "increase"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != "http.request" {
		t.Errorf("span name = %q, want http.request", span.Name)
	}
	if span.SpanKind != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", span.SpanKind)
	}
	var status int64
	for _, attr := range span.Attributes {
		if attr.Key == "http.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	if status != http.StatusOK {
		t.Errorf("http.status_code attribute = %d, want %d", status, http.StatusOK)
	}
	if got := rec.Header().Get("X-Trace-Id"); got == "" || got != span.SpanContext.TraceID().String() {
		t.Errorf("X-Trace-Id = %q, want exported trace id %q", got, span.SpanContext.TraceID().String())
	}
}
