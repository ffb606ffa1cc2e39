package fleet

import (
	"context"
	"fmt"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
)

// Row is one normalized record of the fleet source. Column naming and
// value mapping happen before rows reach this package.
type Row struct {
	ID        string   `json:"id" yaml:"id"`
	Level     int      `json:"level" yaml:"level"`
	Latitude  *float64 `json:"latitude" yaml:"latitude"`
	Longitude *float64 `json:"longitude" yaml:"longitude"`
	Status    string   `json:"status" yaml:"status"`
	Category  string   `json:"category,omitempty" yaml:"category,omitempty"`
	Region    string   `json:"region,omitempty" yaml:"region,omitempty"`
}

// Source loads the fleet once at startup.
type Source interface {
	Load(ctx context.Context) ([]Row, error)
}

// UnitsFromRows converts rows to units. A row missing either coordinate
// yields a unit without position.
func UnitsFromRows(rows []Row) ([]model.Unit, error) {
	units := make([]model.Unit, 0, len(rows))
	for i, row := range rows {
		st, err := model.ParseStatus(row.Status)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, row.ID, err)
		}
		u := model.Unit{
			ID:       row.ID,
			Level:    row.Level,
			Status:   st,
			Category: row.Category,
			Region:   row.Region,
		}
		if row.Latitude != nil && row.Longitude != nil {
			p := geo.Point{Lat: *row.Latitude, Lng: *row.Longitude}
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("row %d (%s): %w", i, row.ID, err)
			}
			u.Position = &p
		}
		units = append(units, u)
	}
	return units, nil
}

// Load reads the source and builds a registry.
func Load(ctx context.Context, src Source) (*Registry, error) {
	rows, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fleet: %w", err)
	}
	units, err := UnitsFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("load fleet: %w", err)
	}
	return NewRegistry(units)
}
