// Package api exposes the read-side query services over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"geoatlas/internal/config"
	"geoatlas/internal/domain"
	"geoatlas/internal/middleware"
	"geoatlas/internal/query"
)

// Server bundles the query services behind the HTTP handlers.
type Server struct {
	geo  *query.GeoService
	vg   *query.VG250Service
	pop  *query.PopulationService
	meta *query.MetadataService
	log  *slog.Logger
}

func NewServer(geo *query.GeoService, vg *query.VG250Service, pop *query.PopulationService, meta *query.MetadataService, log *slog.Logger) *Server {
	return &Server{geo: geo, vg: vg, pop: pop, meta: meta, log: log.With("component", "api")}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router(cfg *config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/geo", func(r chi.Router) {
		r.Get("/", s.handleGeo)
		r.Get("/vg250", s.handleVG250)
		r.Get("/population", s.handlePopulation)
		r.Get("/metadata", s.handleMetadata)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response failed", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses. Internal errors are not
// echoed to the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *domain.ValidationError
		nerr *domain.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"code": http.StatusBadRequest, "message": verr.Message,
		})
	case errors.As(err, &nerr):
		s.writeJSON(w, http.StatusNotFound, map[string]any{
			"code": http.StatusNotFound, "message": nerr.Message,
		})
	default:
		s.log.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"code": http.StatusInternalServerError, "message": "internal server error",
		})
	}
}
