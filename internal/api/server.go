// Package api is the read-only query service over the decided artifact.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/decision"
	"RiskSentinel/internal/pipeline"
)

// Server answers decision queries. It never writes.
type Server struct {
	Artifacts artifact.Store
}

// NewRouter builds the HTTP routes.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "risk-sentinel"})
	})
	r.Route("/api/decisions", func(api chi.Router) {
		api.Get("/", s.getDecisions)
		api.Get("/summary", s.getSummary)
	})
	return r
}

// getDecisions returns the decided artifact exactly as persisted.
func (s *Server) getDecisions(w http.ResponseWriter, r *http.Request) {
	data, err := s.Artifacts.Get(r.Context(), artifact.KeyDecisions)
	if err != nil {
		s.unavailable(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	decided, err := pipeline.LoadDecisions(r.Context(), s.Artifacts)
	if err != nil {
		s.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision.Summarize(decided))
}

// unavailable maps every failure to "not available yet"; internal causes are
// only logged.
func (s *Server) unavailable(w http.ResponseWriter, err error) {
	if errors.Is(err, artifact.ErrNotFound) || errors.Is(err, pipeline.ErrNotReady) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "decisions not found"})
		return
	}
	log.Printf("[ERROR] read decisions: %v", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "decisions not available"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

// ListenAndServe serves until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] query service listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Println("[INFO] query service shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
