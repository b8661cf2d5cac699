// Package admin serves the operator-facing HTTP surface: health, metrics
// introspection, and per-tenant quota management. It listens on its own port
// and is never exposed to plugins.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/grobertson/Rosey-Robot-sub001/internal/audit"
	"github.com/grobertson/Rosey-Robot-sub001/internal/ratelimit"
)

// Server exposes gateway internals read-only, plus quota writes.
type Server struct {
	counters *audit.Counters
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

func NewServer(counters *audit.Counters, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	return &Server{counters: counters, limiter: limiter, logger: logger}
}

// Router builds the chi router for the admin listener.
func (s *Server) Router(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/metrics", s.handleMetrics)
	r.Get("/v1/metrics/{tenant}", s.handleTenantMetrics)
	r.Post("/v1/metrics/reset", s.handleMetricsReset)

	r.Route("/v1/tenants/{tenant}/ratelimit", func(r chi.Router) {
		r.Get("/", s.handleQuotaStatus)
		r.Put("/", s.handleQuotaSet)
		r.Delete("/", s.handleQuotaClear)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.counters.Snapshot())
}

func (s *Server) handleTenantMetrics(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	m, ok := s.counters.Tenant(tenant)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no metrics recorded for tenant")
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tenant string `json:"tenant"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if body.Tenant == "" {
		s.counters.ResetAll()
		s.logger.Info("metrics reset", slog.String("scope", "global"))
	} else {
		s.counters.Reset(body.Tenant)
		s.logger.Info("metrics reset", slog.String("tenant", body.Tenant))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuotaStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.limiter.Status(chi.URLParam(r, "tenant")))
}

func (s *Server) handleQuotaSet(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	var body struct {
		Limit *int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Limit == nil || *body.Limit < 0 {
		s.writeError(w, http.StatusBadRequest, "body must be {\"limit\": <non-negative int>}")
		return
	}
	s.limiter.SetLimit(tenant, *body.Limit)
	s.logger.Info("rate limit override set",
		slog.String("tenant", tenant), slog.Int("limit", *body.Limit))
	s.writeJSON(w, http.StatusOK, s.limiter.Status(tenant))
}

func (s *Server) handleQuotaClear(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	s.limiter.ClearLimit(tenant)
	s.logger.Info("rate limit override cleared", slog.String("tenant", tenant))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("admin response encode failed", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
