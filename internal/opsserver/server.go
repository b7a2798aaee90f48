// Package opsserver serves the operational HTTP surface: health, Prometheus metrics, stats and
// read-only workflow state.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"legalflow/internal/kernel"
	"legalflow/pkg/logx"
	"legalflow/pkg/orchestrator"
	"legalflow/pkg/workflow"
)

// Backend is what the server reports on.
type Backend interface {
	Health(ctx context.Context) map[string]bool
	Stats(ctx context.Context) (kernel.Stats, error)
}

// WorkflowReader exposes stored workflow state.
type WorkflowReader interface {
	GetWorkflow(ctx context.Context, id string) (*workflow.State, error)
	ListWorkflows(ctx context.Context) ([]*workflow.State, error)
}

// Server is the ops HTTP server.
type Server struct {
	backend   Backend
	workflows WorkflowReader
	gatherer  prometheus.Gatherer
	logger    *logx.Logger
	router    *mux.Router
}

// New builds the router.
func New(backend Backend, workflows WorkflowReader, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		backend:   backend,
		workflows: workflows,
		gatherer:  gatherer,
		logger:    logx.NewLogger("opsserver"),
	}
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/workflows", s.handleListWorkflows).Methods(http.MethodGet)
	r.HandleFunc("/workflows/{id}", s.handleGetWorkflow).Methods(http.MethodGet)
	s.router = r
	return s
}

// NewForKernel serves k.
func NewForKernel(k *kernel.Kernel) *Server {
	return New(k, k.Orchestrator, k.Registry)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Ops server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		s.logger.Info("Ops server stopped")
		return nil
	}
}

type healthResponse struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := s.backend.Health(r.Context())
	resp := healthResponse{Status: "ok", Components: components}
	code := http.StatusOK
	for _, ok := range components {
		if !ok {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	respondJSON(w, code, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	states, err := s.workflows.ListWorkflows(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := states[:0]
		for _, st := range states {
			if string(st.Status) == status {
				filtered = append(filtered, st)
			}
		}
		states = filtered
	}
	respondJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, err := s.workflows.GetWorkflow(r.Context(), id)
	switch {
	case errors.Is(err, orchestrator.ErrWorkflowNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, st)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{Error: err.Error(), Code: status})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Debug("%s %s %d %s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start).Round(time.Microsecond))
	})
}
