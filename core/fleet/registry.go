// Package fleet owns the in-memory ambulance pool and its status transitions.
package fleet

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/kilianp07/ambudispatch/core/model"
)

var (
	// ErrUnitNotFound is returned for identifiers absent from the registry.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrReservationConflict is returned when a unit is not in the state a
	// transition requires, typically because another request reserved it first.
	ErrReservationConflict = errors.New("reservation conflict")
)

type entry struct {
	unit   model.Unit
	status atomic.Int32
}

func (e *entry) snapshot() model.Unit {
	u := e.unit
	if u.Position != nil {
		p := *u.Position
		u.Position = &p
	}
	u.Status = model.Status(e.status.Load())
	return u
}

func (e *entry) transition(from, to model.Status) bool {
	return e.status.CompareAndSwap(int32(from), int32(to))
}

// Registry holds the fleet. The set of units is fixed at construction; only
// their status changes afterwards, one atomic word per unit, so requests
// contending for different units never block each other.
type Registry struct {
	byID  map[string]*entry
	order []*entry
}

// NewRegistry builds a registry from the loaded units.
func NewRegistry(units []model.Unit) (*Registry, error) {
	r := &Registry{byID: make(map[string]*entry, len(units))}
	for _, u := range units {
		if u.ID == "" {
			return nil, fmt.Errorf("fleet: unit with empty id")
		}
		if _, dup := r.byID[u.ID]; dup {
			return nil, fmt.Errorf("fleet: duplicate unit id %s", u.ID)
		}
		if !model.ValidLevel(u.Level) {
			return nil, fmt.Errorf("fleet: unit %s: %w", u.ID, model.ErrInvalidLevel)
		}
		e := &entry{unit: u}
		e.status.Store(int32(u.Status))
		r.byID[u.ID] = e
		r.order = append(r.order, e)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i].unit.ID < r.order[j].unit.ID })
	return r, nil
}

// Len returns the number of units.
func (r *Registry) Len() int { return len(r.order) }

// ListCapableAvailable returns a snapshot of units currently available whose
// level is at least minLevel.
func (r *Registry) ListCapableAvailable(minLevel int) []model.Unit {
	var out []model.Unit
	for _, e := range r.order {
		if model.Status(e.status.Load()) != model.StatusAvailable || !e.unit.Capable(minLevel) {
			continue
		}
		out = append(out, e.snapshot())
	}
	return out
}

// Reserve moves the unit from Available to Dispatched iff it is still
// Available at the time of the call.
func (r *Registry) Reserve(id string) error {
	return r.transition(id, model.StatusAvailable, model.StatusDispatched)
}

// Release returns a dispatched unit to service.
func (r *Registry) Release(id string) error {
	return r.transition(id, model.StatusDispatched, model.StatusAvailable)
}

// SetUnavailable takes an available unit out of service.
func (r *Registry) SetUnavailable(id string) error {
	return r.transition(id, model.StatusAvailable, model.StatusUnavailable)
}

// SetAvailable puts an unavailable unit back in service.
func (r *Registry) SetAvailable(id string) error {
	return r.transition(id, model.StatusUnavailable, model.StatusAvailable)
}

func (r *Registry) transition(id string, from, to model.Status) error {
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	if !e.transition(from, to) {
		return fmt.Errorf("%w: unit %s is %s, want %s", ErrReservationConflict, id, model.Status(e.status.Load()), from)
	}
	return nil
}

// Get returns a snapshot of a single unit.
func (r *Registry) Get(id string) (model.Unit, bool) {
	e, ok := r.byID[id]
	if !ok {
		return model.Unit{}, false
	}
	return e.snapshot(), true
}

// Snapshot returns every unit ordered by identifier.
func (r *Registry) Snapshot() []model.Unit {
	out := make([]model.Unit, 0, len(r.order))
	for _, e := range r.order {
		out = append(out, e.snapshot())
	}
	return out
}

// Counts returns the number of units per status.
func (r *Registry) Counts() map[model.Status]int {
	out := map[model.Status]int{
		model.StatusAvailable:   0,
		model.StatusDispatched:  0,
		model.StatusUnavailable: 0,
	}
	for _, e := range r.order {
		out[model.Status(e.status.Load())]++
	}
	return out
}
