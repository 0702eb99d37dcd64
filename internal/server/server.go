package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the workset HTTP API server.
type Server struct {
	svc     *Service
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given service and version string.
func New(svc *Service, version string) *Server {
	s := &Server{
		svc:     svc,
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
		r.Get("/metrics", s.handleMetrics)
		r.Post("/pressure", s.handleSetPressure)

		// Cache placement routes: resident objects and tier moves
		r.Get("/objects/{objectID}", s.handleGetObject)
		r.Post("/objects/{objectID}/activate", s.handleActivate)
		r.Post("/objects/{objectID}/background", s.handleBackground)
		r.Post("/objects/{objectID}/demote", s.handleDemote)
		r.Delete("/objects/{objectID}", s.handleDeactivate)

		// Registry routes
		r.Get("/entities", s.handleListEntities)
		r.Post("/entities", s.handleCreateEntity)
		r.Get("/entities/{entityID}", s.handleGetEntity)
		r.Delete("/entities/{entityID}", s.handleDeleteEntity)
		r.Get("/entities/{entityID}/similar", s.handleSimilar)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	dbPath := ""
	if s.svc.db == nil {
		dbOK = false
	} else {
		dbPath = s.svc.db.Path
		if err := s.svc.db.Ping(); err != nil {
			dbOK = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": dbPath,
	})
}
