package main

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// statusRecorder remembers the status code so the completion log and the
// request metrics can report it. First WriteHeader wins, as in net/http.
type statusRecorder struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusRecorder) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.New().String()
}

// routeTemplate returns the matched route pattern so the metrics stay
// low-cardinality; every static asset collapses into "/".
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// withTelemetry traces, logs and measures every request. Handler panics are
// recovered here and answered with a 500 so one bad request cannot take the
// whole fireplace down.
func withTelemetry(logger *logrus.Logger, em *Emitter) mux.MiddlewareFunc {
	// Resolved at build time rather than package init so the tracer comes
	// from whichever provider telemetry startup installed.
	tracer := otel.Tracer(ResourceLibrary)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := requestID(r)
			path := routeTemplate(r)

			fieldsLogger := logger.WithFields(logrus.Fields{
				"request-id": reqID,
				"path":       path,
				"method":     r.Method,
			})
			fieldsLogger.Debug("request started")

			propagator := otel.GetTextMapPropagator()
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(
				ctx,
				"http.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", path),
					attribute.String("http.url", r.URL.String()),
					attribute.String("http.request_id", reqID),
					attribute.String("net.host.name", r.Host),
				),
			)
			defer span.End()

			propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set("X-Trace-Id", sc.TraceID().String())
				fieldsLogger = fieldsLogger.WithField("trace-id", sc.TraceID().String())
			}
			w.Header().Set("X-Request-Id", reqID)

			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				if recovered := recover(); recovered != nil {
					fieldsLogger.WithFields(logrus.Fields{
						"panic":  recovered,
						"stack":  string(debug.Stack()),
						"status": http.StatusInternalServerError,
					}).Error("panic recovered in request handler")

					if !rec.statusWritten {
						rec.Header().Set("Content-Type", "application/json")
						rec.WriteHeader(http.StatusInternalServerError)
						_ = json.NewEncoder(rec).Encode(map[string]any{
							"success": false,
							"error":   "internal server error",
						})
					}
					finishRequest(ctx, em, span, fieldsLogger, r, path, rec.Status(), time.Since(start))
				}
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))

			finishRequest(ctx, em, span, fieldsLogger, r, path, rec.Status(), time.Since(start))
		})
	}
}

func finishRequest(ctx context.Context, em *Emitter, span trace.Span, fieldsLogger *logrus.Entry, r *http.Request, path string, status int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
	)
	em.CountRequest(ctx, path, r.Method, strconv.Itoa(status))
	em.ObserveRequestDuration(ctx, path, duration.Seconds())

	fieldsLogger.WithFields(logrus.Fields{
		"duration":    duration,
		"status-code": status,
	}).Info("request completed")
}
