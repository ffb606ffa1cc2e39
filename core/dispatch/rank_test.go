package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
)

func TestRank(t *testing.T) {
	units := []model.Unit{
		{ID: "far", Position: pos(geo.Point{Lat: 49.5, Lng: 2.35})},
		{ID: "none"},
		{ID: "b", Position: pos(p2)},
		{ID: "a", Position: pos(p2)},
		{ID: "near", Position: pos(p1)},
	}
	got := rank(p0, units, 3)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.unit.ID
	}
	assert.Equal(t, []string{"near", "a", "b"}, ids)
	assert.InDelta(t, geo.DistanceKm(p0, p2), got[1].km, 1e-9)

	assert.Len(t, rank(p0, units, 0), 4)
	assert.Nil(t, rank(p0, []model.Unit{{ID: "none"}}, 3))
}
