// Package server exposes the event ledger over HTTP: a service-credential
// ingestion boundary and admin-credential query boundary, with CORS
// preflight support for browser-originated producers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bholliman55/securewatch-n8n/internal/event"
	"github.com/bholliman55/securewatch-n8n/internal/ledger"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr          string
	AuthSecret    []byte
	ServiceAPIKey string
	AllowOrigin   string
}

// Server wires the ledger capabilities to HTTP handlers. The appender and
// reader are held as separate capabilities so each route is gated by
// exactly the credential its capability requires.
type Server struct {
	appender ledger.Appender
	reader   ledger.Reader
	store    ledger.Store
	auth     *Auth
	metrics  *Metrics
	cfg      Config

	httpSrv *http.Server
}

// New creates the HTTP server around a ledger store.
func New(store ledger.Store, cfg Config) *Server {
	if cfg.AllowOrigin == "" {
		cfg.AllowOrigin = "*"
	}

	reg := prometheus.NewRegistry()

	s := &Server{
		appender: store,
		reader:   store,
		store:    store,
		auth:     NewAuth(cfg.AuthSecret, cfg.ServiceAPIKey),
		metrics:  NewMetrics(reg),
		cfg:      cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", s.auth.requireService(s.handleIngest))
	mux.HandleFunc("OPTIONS /events", s.handlePreflight)
	mux.HandleFunc("POST /artifacts", s.auth.requireService(s.handleIngestArtifact))
	mux.HandleFunc("GET /traces/{trace_id}", s.auth.requireAdmin(s.handleTimeline))
	mux.HandleFunc("GET /traces/{trace_id}/artifacts", s.auth.requireAdmin(s.handleArtifacts))
	mux.HandleFunc("GET /errors", s.auth.requireAdmin(s.handleErrors))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withCORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Auth returns the authenticator so operators can mint tokens.
func (s *Server) Auth() *Auth { return s.auth }

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	log.Printf("[server] listening on %s", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowOrigin)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// handleIngest is the single synchronous ingestion operation: validate,
// append, acknowledge. Validation failures are the producer's problem
// (400); storage faults are ours (500). The core never retries either.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw event.Event
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.metrics.IngestTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev, err := event.Validate(&raw)
	if err != nil {
		s.metrics.IngestTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.appender.AppendEvent(r.Context(), ev)
	if err != nil {
		s.metrics.IngestTotal.WithLabelValues("storage_error").Inc()
		log.Printf("[server] append failed: %v", err)
		writeError(w, http.StatusInternalServerError, "event could not be persisted")
		return
	}

	s.metrics.IngestTotal.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleIngestArtifact(w http.ResponseWriter, r *http.Request) {
	var a event.Artifact
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if a.EventID == "" {
		writeError(w, http.StatusBadRequest, "invalid artifact: event_id: required")
		return
	}
	if !event.ValidTraceID(a.TraceID) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid artifact: trace_id: %q is not a valid UUID", a.TraceID))
		return
	}
	a.TraceID = event.NormalizeTraceID(a.TraceID)
	if len(a.Inline) > 0 && a.ExternalURL != "" {
		writeError(w, http.StatusBadRequest, "invalid artifact: inline and external_url are mutually exclusive")
		return
	}
	if a.SizeBytes == 0 && len(a.Inline) > 0 {
		a.SizeBytes = int64(len(a.Inline))
	}

	id, err := s.appender.AppendArtifact(r.Context(), &a)
	if err != nil {
		log.Printf("[server] artifact append failed: %v", err)
		writeError(w, http.StatusInternalServerError, "artifact could not be persisted")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	if !event.ValidTraceID(traceID) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("trace_id %q is not a valid UUID", traceID))
		return
	}

	events, err := s.reader.Timeline(r.Context(), traceID)
	if err != nil {
		log.Printf("[server] timeline query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "timeline query failed")
		return
	}

	s.metrics.QueryTotal.WithLabelValues("timeline").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"trace_id": event.NormalizeTraceID(traceID),
		"events":   events,
	})
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	if !event.ValidTraceID(traceID) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("trace_id %q is not a valid UUID", traceID))
		return
	}

	artifacts, err := s.reader.ArtifactsByTrace(r.Context(), traceID)
	if err != nil {
		log.Printf("[server] artifact query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "artifact query failed")
		return
	}

	s.metrics.QueryTotal.WithLabelValues("artifacts").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"trace_id":  event.NormalizeTraceID(traceID),
		"artifacts": artifacts,
	})
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	window := ledger.DefaultErrorWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid window %q: %v", raw, err))
			return
		}
		window = ledger.ClampWindow(d)
	}

	events, err := s.reader.RecentErrors(r.Context(), window)
	if err != nil {
		log.Printf("[server] error window query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "error window query failed")
		return
	}

	s.metrics.QueryTotal.WithLabelValues("errors").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"window": window.String(),
		"events": events,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "service": "securewatch"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
