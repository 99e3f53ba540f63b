package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//go:embed web
var webAssets embed.FS

// requests larger than this are junk, not fireplace traffic
const maxBodyBytes = 1 << 20

// Server owns the HTTP surface: the fireplace UI, the ingest API the UI
// reports into, and the scrape and health endpoints.
type Server struct {
	log     *logrus.Logger
	em      *Emitter
	policy  *Policy
	started time.Time
}

func NewServer(log *logrus.Logger, em *Emitter, policy *Policy) *Server {
	return &Server{
		log:     log,
		em:      em,
		policy:  policy,
		started: time.Now(),
	}
}

func (s *Server) Routes() (http.Handler, error) {
	staticFS, err := fs.Sub(webAssets, "web")
	if err != nil {
		return nil, fmt.Errorf("preparing embedded assets: %w", err)
	}

	r := mux.NewRouter()
	r.Use(withTelemetry(s.log, s.em))
	r.HandleFunc("/api/flames", s.handleFlames).Methods(http.MethodPost)
	r.HandleFunc("/api/render", s.handleRender).Methods(http.MethodPost)
	r.HandleFunc("/api/logs", s.handleLogs).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(s.em.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS))).Methods(http.MethodGet)
	return r, nil
}

type flamesRequest struct {
	Count  *int    `json:"count"`
	Action *string `json:"action"`
}

func (s *Server) handleFlames(w http.ResponseWriter, r *http.Request) {
	var req flamesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeClientError(w, err.Error())
		return
	}
	if req.Count == nil {
		writeClientError(w, "count is required")
		return
	}
	if *req.Count < 0 {
		writeClientError(w, "count must not be negative")
		return
	}
	action := ""
	if req.Action != nil {
		action = *req.Action
		if !validAction(action) {
			writeClientError(w, fmt.Sprintf("unknown action %q", action))
			return
		}
	}

	s.policy.ApplyLoadChange(r.Context(), s.em, *req.Count, action)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": *req.Count})
}

type renderRequest struct {
	Duration   *float64 `json:"duration"`
	FlameCount *int     `json:"flameCount"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeClientError(w, err.Error())
		return
	}
	if req.Duration == nil {
		writeClientError(w, "duration is required")
		return
	}
	if *req.Duration < 0 {
		writeClientError(w, "duration must not be negative")
		return
	}
	if req.FlameCount == nil {
		writeClientError(w, "flameCount is required")
		return
	}
	if *req.FlameCount < 0 {
		writeClientError(w, "flameCount must not be negative")
		return
	}

	s.policy.ApplyRenderSample(r.Context(), s.em, *req.Duration, *req.FlameCount)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type logsRequest struct {
	FlameCount *int `json:"flameCount"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var req logsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeClientError(w, err.Error())
		return
	}
	if req.FlameCount == nil {
		writeClientError(w, "flameCount is required")
		return
	}
	if *req.FlameCount < 0 {
		writeClientError(w, "flameCount must not be negative")
		return
	}

	n := s.policy.ApplyPeriodicLogs(r.Context(), s.em, *req.FlameCount)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logsGenerated": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.started).Seconds(),
	})
}

func validAction(action string) bool {
	switch action {
	case ActionIncrease, ActionDecrease, ActionInitial:
		return true
	}
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeClientError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": msg})
}
