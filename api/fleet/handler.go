// Package fleet exposes the fleet registry over HTTP.
package fleet

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/ambudispatch/core/events"
	corefleet "github.com/kilianp07/ambudispatch/core/fleet"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

// Registry is the part of the fleet registry the handler drives.
type Registry interface {
	Snapshot() []model.Unit
	Counts() map[model.Status]int
	Get(id string) (model.Unit, bool)
	Release(id string) error
	SetUnavailable(id string) error
	SetAvailable(id string) error
}

// Snapshot is the body of GET /api/fleet.
type Snapshot struct {
	Units  []model.Unit         `json:"units"`
	Counts map[model.Status]int `json:"counts"`
}

// Handler serves the fleet endpoints.
type Handler struct {
	reg Registry
	bus eventbus.EventBus
	log logger.Logger
	mux *http.ServeMux
}

// NewHandler registers:
//
//	GET  /api/fleet
//	GET  /api/fleet/{id}
//	POST /api/fleet/{id}/release
//	POST /api/fleet/{id}/unavailable
//	POST /api/fleet/{id}/available
//
// bus may be nil.
func NewHandler(reg Registry, bus eventbus.EventBus, log logger.Logger) *Handler {
	h := &Handler{reg: reg, bus: bus, log: log, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /api/fleet", h.list)
	h.mux.HandleFunc("GET /api/fleet/{id}", h.get)
	h.mux.HandleFunc("POST /api/fleet/{id}/release", h.release)
	h.mux.HandleFunc("POST /api/fleet/{id}/unavailable", h.transition(reg.SetUnavailable))
	h.mux.HandleFunc("POST /api/fleet/{id}/available", h.transition(reg.SetAvailable))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Snapshot{Units: h.reg.Snapshot(), Counts: h.reg.Counts()})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, ok := h.reg.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unit not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.reg.Release(id); err != nil {
		h.fail(w, err)
		return
	}
	if h.bus != nil {
		h.bus.Publish(events.ReleaseEvent{UnitID: id, Time: time.Now()})
	}
	h.log.Infof("unit %s released", id)
	h.respondUnit(w, id)
}

func (h *Handler) transition(fn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := fn(id); err != nil {
			h.fail(w, err)
			return
		}
		h.respondUnit(w, id)
	}
}

func (h *Handler) respondUnit(w http.ResponseWriter, id string) {
	u, _ := h.reg.Get(id)
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, corefleet.ErrUnitNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, corefleet.ErrReservationConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Errorf("fleet transition: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
