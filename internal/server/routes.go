package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/salthouse/workset/internal/lifecycle"
	"github.com/salthouse/workset/internal/registry"
)

// errStatus maps service errors onto HTTP status codes. Transition
// violations are conflicts with the object's current placement; invalid
// objects and bad pressure values are the caller's fault; corrupt tier
// state is ours.
func errStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidObject):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrPressureOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, `{"error":"`+err.Error()+`"}`, errStatus(err))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"cache":    s.svc.Metrics(),
		"limits":   s.svc.Limits(),
		"pressure": s.svc.Pressure(),
		"analysis": s.svc.Analyze(),
	})
}

func (s *Server) handleSetPressure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pressure float64 `json:"pressure"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	if err := s.svc.SetMemoryPressure(req.Pressure); err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"pressure": req.Pressure,
		"limits":   s.svc.Limits(),
	})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "objectID")

	e, ok := s.svc.Lookup(id)
	if !ok {
		http.Error(w, `{"error":"object not resident"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tier":   e.State.String(),
		"entity": e,
	})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "objectID")

	// The body is optional; without one the entity's stored priority wins.
	var req struct {
		Priority *int `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	e, err := s.svc.ActivateObject(id, req.Priority)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":       id,
		"tier":     e.State.String(),
		"priority": e.Priority,
	})
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "objectID")

	e, err := s.svc.BackgroundObject(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":   id,
		"tier": e.State.String(),
	})
}

func (s *Server) handleDemote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "objectID")

	e, err := s.svc.DemoteObject(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":   id,
		"tier": e.State.String(),
	})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "objectID")

	e, err := s.svc.DeactivateObject(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":   id,
		"tier": e.State.String(),
	})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	role := r.URL.Query().Get("role")

	entities := s.svc.Entities(kind, role)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":    len(entities),
		"entities": entities,
	})
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind        string             `json:"kind"`
		Role        string             `json:"role"`
		Description string             `json:"description"`
		Priority    int                `json:"priority"`
		Attrs       map[string]float64 `json:"attrs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		http.Error(w, `{"error":"kind required"}`, http.StatusBadRequest)
		return
	}

	e, err := s.svc.CreateEntity(req.Kind, req.Role, req.Description, req.Priority, req.Attrs)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(e)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")

	e, err := s.svc.Entity(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(e)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")

	if err := s.svc.DeleteEntity(id); err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")

	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			k = n
		}
	}
	minSim := registry.DefaultMinSimilarity
	if v := r.URL.Query().Get("min_sim"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			minSim = f
		}
	}
	kind := r.URL.Query().Get("kind")

	matches, err := s.svc.Similar(id, k, minSim, kind)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      id,
		"count":   len(matches),
		"matches": matches,
	})
}
