// Package rest serves the operational HTTP surface: liveness and readiness
// probes, a status summary of the most recent reconciliation run, and the
// Prometheus scrape endpoint.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oakmere/regsync/internal/domain/entity"
	"github.com/oakmere/regsync/internal/infrastructure/config"
)

type Server struct {
	httpServer *http.Server
	store      entity.FingerprintStore
	audit      entity.AuditLog
	logger     *zap.Logger
	startTime  time.Time
}

func NewServer(cfg config.ServerConfig, store entity.FingerprintStore, audit entity.AuditLog, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		store:     store,
		audit:     audit,
		logger:    logger,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.logRequests(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleReady reports ready once the fingerprint store answers. A failing
// store means runs cannot make progress, so the pod should be pulled from
// rotation.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.store.List(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type statusResponse struct {
	TrackedEntities int                `json:"tracked_entities"`
	ByState         map[string]int     `json:"by_state"`
	BySource        map[string]int     `json:"by_source"`
	LastRun         *entity.RunSummary `json:"last_run,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	records, err := s.store.List(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	resp := statusResponse{
		TrackedEntities: len(records),
		ByState:         make(map[string]int),
		BySource:        make(map[string]int),
	}
	for _, rec := range records {
		resp.ByState[rec.State.String()]++
		for _, source := range rec.Sources {
			resp.BySource[source]++
		}
	}

	last, err := s.audit.LastRun(ctx)
	if err != nil {
		s.logger.Warn("reading last run for status", zap.Error(err))
	} else {
		resp.LastRun = last
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
