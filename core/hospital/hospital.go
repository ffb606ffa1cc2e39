// Package hospital keeps the directory of receiving hospitals and answers
// proximity searches and triage recommendations against it.
package hospital

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
)

// Hospital is one receiving facility. Level uses the same 1-4 scale as
// ambulance capability. Hospitals are not modified once stored.
type Hospital struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Level             int        `json:"level"`
	Position          *geo.Point `json:"position,omitempty"`
	Address           string     `json:"address,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Email             string     `json:"email,omitempty"`
	Website           string     `json:"website,omitempty"`
	Facilities        []string   `json:"facilities"`
	Specialties       []string   `json:"specialties"`
	EmergencyServices bool       `json:"emergency_services"`
	BedCount          int        `json:"bed_count,omitempty"`
	State             string     `json:"state,omitempty"`
	Area              string     `json:"area,omitempty"`
	Availability      string     `json:"availability,omitempty"`
}

// Row is one record of a hospital source before validation.
type Row struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Level             int      `json:"level" yaml:"level"`
	Latitude          *float64 `json:"latitude" yaml:"latitude"`
	Longitude         *float64 `json:"longitude" yaml:"longitude"`
	Address           string   `json:"address" yaml:"address"`
	Phone             string   `json:"phone" yaml:"phone"`
	Email             string   `json:"email" yaml:"email"`
	Website           string   `json:"website" yaml:"website"`
	Facilities        []string `json:"facilities" yaml:"facilities"`
	Specialties       []string `json:"specialties" yaml:"specialties"`
	EmergencyServices *bool    `json:"emergency_services" yaml:"emergency_services"`
	BedCount          *int     `json:"bed_count" yaml:"bed_count"`
	State             string   `json:"state" yaml:"state"`
	Area              string   `json:"area" yaml:"area"`
	Availability      string   `json:"availability" yaml:"availability"`
}

// Source loads hospital rows.
type Source interface {
	Load(ctx context.Context) ([]Row, error)
}

// FromRows validates rows and converts the usable ones. A row without a
// name, with a level outside 1-4 or with an already used id is skipped
// and reported in skipped. Rows without an id are numbered hospital_1,
// hospital_2... by position. Out of range coordinates leave the hospital
// without position, as does a missing one. Emergency services default to
// available.
func FromRows(rows []Row) (hospitals []Hospital, skipped []string) {
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = fmt.Sprintf("hospital_%d", i+1)
		}
		name := strings.TrimSpace(r.Name)
		switch {
		case name == "" || strings.EqualFold(name, "nan"):
			skipped = append(skipped, fmt.Sprintf("row %d: hospital name is required", i+1))
			continue
		case r.Level < model.MinLevel || r.Level > model.MaxLevel:
			skipped = append(skipped, fmt.Sprintf("row %d (%s): level %d is not between %d and %d", i+1, name, r.Level, model.MinLevel, model.MaxLevel))
			continue
		}
		if _, dup := seen[id]; dup {
			skipped = append(skipped, fmt.Sprintf("row %d (%s): duplicate id %q", i+1, name, id))
			continue
		}
		seen[id] = struct{}{}

		h := Hospital{
			ID:                id,
			Name:              name,
			Level:             r.Level,
			Address:           strings.TrimSpace(r.Address),
			Phone:             strings.TrimSpace(r.Phone),
			Email:             strings.TrimSpace(r.Email),
			Website:           strings.TrimSpace(r.Website),
			Facilities:        cleanList(r.Facilities),
			Specialties:       cleanList(r.Specialties),
			EmergencyServices: r.EmergencyServices == nil || *r.EmergencyServices,
			State:             strings.TrimSpace(r.State),
			Area:              strings.TrimSpace(r.Area),
			Availability:      strings.TrimSpace(r.Availability),
		}
		if r.BedCount != nil && *r.BedCount > 0 {
			h.BedCount = *r.BedCount
		}
		if r.Latitude != nil && r.Longitude != nil {
			p := geo.Point{Lat: *r.Latitude, Lng: *r.Longitude}
			if p.Validate() == nil {
				h.Position = &p
			}
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, skipped
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !strings.EqualFold(s, "nan") {
			out = append(out, s)
		}
	}
	return out
}

// Load reads src and builds a directory from the usable rows.
func Load(ctx context.Context, src Source) (*Directory, []string, error) {
	rows, err := src.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load hospitals: %w", err)
	}
	hs, skipped := FromRows(rows)
	return NewDirectory(hs), skipped, nil
}
