package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const storeCheckTimeout = 3 * time.Second

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	monitor    *Monitor
	storeCheck func(ctx context.Context) error
	server     *http.Server
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, port int) *Server {
	s := &Server{monitor: monitor}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// WithStoreCheck makes /health report unavailable while check fails.
func (s *Server) WithStoreCheck(check func(ctx context.Context) error) *Server {
	s.storeCheck = check
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/sources", s.handleSources)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.Snapshot()

	response := map[string]any{"status": StatusUnavailable}
	code := http.StatusServiceUnavailable
	if snap != nil {
		response["status"] = snap.Status
		response["counts"] = snap.Counts
		response["cycle_at"] = snap.CycleAt
		if snap.Error != "" {
			response["error"] = snap.Error
		}
		if snap.Status != StatusUnavailable {
			code = http.StatusOK
		}
	}
	if s.storeCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storeCheckTimeout)
		defer cancel()
		if err := s.storeCheck(ctx); err != nil {
			response["status"] = StatusUnavailable
			response["store_error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, response)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": StatusUnavailable})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
