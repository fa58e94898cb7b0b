// Package server exposes health and status probes over HTTP. The probe
// surface is read-only and mirrors the get_status / get_stats tools.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/strata/internal/dualwrite"
	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/store"
)

// Server is the strata probe server.
type Server struct {
	coord   *dualwrite.Coordinator
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over the coordinator and decay engine.
func New(coord *dualwrite.Coordinator, eng *engine.Engine, version string) *Server {
	s := &Server{
		coord:   coord,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.coord.Health()
	writeJSON(w, map[string]any{
		"status":  health.Overall,
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	health := s.coord.Health()
	writeJSON(w, map[string]any{
		"version": s.version,
		"health":  health.Overall,
		"layers":  health.Layers,
		"dual_write": map[string]any{
			"enabled":   health.DualWrite,
			"data_dir":  health.DataDir,
			"cache_dir": health.CacheDir,
		},
		"decay": s.engine.Status(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Config()
	layers := make(map[string]store.LayerStats, len(store.Layers))
	for _, layer := range store.Layers {
		stats, err := s.coord.Stats(layer, cfg.Immortal, cfg.Threshold)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]string{"error": "stats unavailable"})
			return
		}
		layers[layer] = stats
	}
	writeJSON(w, map[string]any{
		"layers": layers,
		"decay":  s.engine.Status(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
