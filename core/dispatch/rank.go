package dispatch

import (
	"sort"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
)

type candidate struct {
	unit model.Unit
	km   float64
}

// rank orders the positioned units by great-circle distance to origin, ties
// broken by unit ID, and keeps the first k. Units without a position are
// skipped.
func rank(origin geo.Point, units []model.Unit, k int) []candidate {
	located := make([]model.Unit, 0, len(units))
	pts := make([]geo.Point, 0, len(units))
	for _, u := range units {
		if u.Position == nil {
			continue
		}
		located = append(located, u)
		pts = append(pts, *u.Position)
	}
	if len(located) == 0 {
		return nil
	}
	dist := geo.DistancesKm(origin, pts, nil)
	out := make([]candidate, len(located))
	for i, u := range located {
		out[i] = candidate{unit: u, km: dist[i]}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].km != out[j].km {
			return out[i].km < out[j].km
		}
		return out[i].unit.ID < out[j].unit.ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
