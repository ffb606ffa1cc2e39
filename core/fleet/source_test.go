package fleet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/model"
)

type staticSource struct {
	rows []Row
	err  error
}

func (s staticSource) Load(context.Context) ([]Row, error) { return s.rows, s.err }

func f(v float64) *float64 { return &v }

func TestUnitsFromRows(t *testing.T) {
	rows := []Row{
		{ID: "AMB_001", Level: 3, Latitude: f(22.3), Longitude: f(73.1), Status: "available"},
		{ID: "AMB_002", Level: 1, Latitude: f(22.3), Status: "unavailable"},
	}
	units, err := UnitsFromRows(rows)
	require.NoError(t, err)
	require.Len(t, units, 2)
	require.NotNil(t, units[0].Position)
	assert.Equal(t, 73.1, units[0].Position.Lng)
	assert.Nil(t, units[1].Position)
	assert.Equal(t, model.StatusUnavailable, units[1].Status)
}

func TestUnitsFromRows_Errors(t *testing.T) {
	_, err := UnitsFromRows([]Row{{ID: "x", Level: 1, Status: "maybe"}})
	assert.Error(t, err)
	_, err = UnitsFromRows([]Row{{ID: "x", Level: 1, Status: "available", Latitude: f(95), Longitude: f(0)}})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	reg, err := Load(context.Background(), staticSource{rows: []Row{{ID: "A", Level: 2, Status: "available"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	_, err = Load(context.Background(), staticSource{err: errors.New("boom")})
	assert.Error(t, err)
}
