package hospital

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/ambudispatch/core/geo"
)

// urbanSpeedKmh converts distances into the rough travel times shown to
// call takers.
const urbanSpeedKmh = 30

// Query filters a proximity search. Zero values match everything. Levels
// lists accepted levels; facility and specialty terms must each match,
// case-insensitively, a substring of one of the hospital's entries.
type Query struct {
	// MaxDistanceKm excludes hospitals farther away, and those without
	// position, when set.
	MaxDistanceKm *float64
	Levels        []int
	Facilities    []string
	Specialties   []string
}

// Match is a search hit. Distance and travel time are nil for hospitals
// without position.
type Match struct {
	Hospital
	DistanceKm    *float64 `json:"distance_km"`
	TravelMinutes *int     `json:"travel_time_minutes"`
}

// Stats summarizes the directory.
type Stats struct {
	TotalHospitals        int         `json:"total_hospitals"`
	ByLevel               map[int]int `json:"by_level"`
	WithEmergencyServices int         `json:"with_emergency_services"`
	AverageBedCount       float64     `json:"average_bed_count"`
	UniqueFacilities      []string    `json:"unique_facilities"`
	UniqueSpecialties     []string    `json:"unique_specialties"`
}

// Directory holds the hospitals in memory. Searches run concurrently with
// each other; Replace swaps the whole set.
type Directory struct {
	mu          sync.RWMutex
	hospitals   []Hospital
	located     []int
	points      []geo.Point
	facilities  []string
	specialties []string
}

// NewDirectory builds a directory from already validated hospitals.
func NewDirectory(hs []Hospital) *Directory {
	d := &Directory{}
	d.Replace(hs)
	return d
}

// Replace swaps the directory content for hs.
func (d *Directory) Replace(hs []Hospital) {
	hs = slices.Clone(hs)
	var (
		located []int
		points  []geo.Point
		facs    = map[string]struct{}{}
		specs   = map[string]struct{}{}
	)
	for i, h := range hs {
		if h.Position != nil {
			located = append(located, i)
			points = append(points, *h.Position)
		}
		for _, f := range h.Facilities {
			facs[f] = struct{}{}
		}
		for _, s := range h.Specialties {
			specs[s] = struct{}{}
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hospitals = hs
	d.located = located
	d.points = points
	d.facilities = sortedKeys(facs)
	d.specialties = sortedKeys(specs)
}

// Len returns the number of hospitals.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hospitals)
}

// Get returns the hospital with the given id.
func (d *Directory) Get(id string) (Hospital, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, h := range d.hospitals {
		if h.ID == id {
			return h, true
		}
	}
	return Hospital{}, false
}

// Facilities returns every facility offered by at least one hospital,
// sorted.
func (d *Directory) Facilities() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.facilities)
}

// Specialties returns every specialty offered by at least one hospital,
// sorted.
func (d *Directory) Specialties() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.specialties)
}

// Search returns the hospitals matching q, nearest first. Hospitals
// without position sort last; ties are ordered by id.
func (d *Directory) Search(origin geo.Point, q Query) []Match {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dist := d.distancesFrom(origin)

	out := make([]Match, 0)
	for i, h := range d.hospitals {
		if len(q.Levels) > 0 && !slices.Contains(q.Levels, h.Level) {
			continue
		}
		m := Match{Hospital: h}
		if km, ok := dist[i]; ok {
			if q.MaxDistanceKm != nil && km > *q.MaxDistanceKm {
				continue
			}
			m.DistanceKm, m.TravelMinutes = roundedKm(km), travelMinutes(km)
		} else if q.MaxDistanceKm != nil {
			continue
		}
		if !matchesAll(h.Facilities, q.Facilities) || !matchesAll(h.Specialties, q.Specialties) {
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Match) int {
		switch {
		case a.DistanceKm == nil && b.DistanceKm != nil:
			return 1
		case a.DistanceKm != nil && b.DistanceKm == nil:
			return -1
		case a.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm:
			return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Stats summarizes the directory. The bed average covers hospitals that
// report a bed count.
func (d *Directory) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{
		TotalHospitals:    len(d.hospitals),
		ByLevel:           map[int]int{},
		UniqueFacilities:  slices.Clone(d.facilities),
		UniqueSpecialties: slices.Clone(d.specialties),
	}
	var beds []float64
	for _, h := range d.hospitals {
		s.ByLevel[h.Level]++
		if h.EmergencyServices {
			s.WithEmergencyServices++
		}
		if h.BedCount > 0 {
			beds = append(beds, float64(h.BedCount))
		}
	}
	if len(beds) > 0 {
		s.AverageBedCount = stat.Mean(beds, nil)
	}
	return s
}

// distancesFrom maps hospital index to haversine distance for every
// located hospital. Callers hold the read lock.
func (d *Directory) distancesFrom(origin geo.Point) map[int]float64 {
	km := geo.DistancesKm(origin, d.points, nil)
	out := make(map[int]float64, len(km))
	for j, i := range d.located {
		out[i] = km[j]
	}
	return out
}

func roundedKm(km float64) *float64 {
	r := math.Round(km*100) / 100
	return &r
}

func travelMinutes(km float64) *int {
	m := int(km * 60 / urbanSpeedKmh)
	return &m
}

// matchesAll reports whether every term is a case-insensitive substring
// of at least one entry of have.
func matchesAll(have, terms []string) bool {
	for _, t := range terms {
		if !containsFold(have, t) {
			return false
		}
	}
	return true
}

func containsFold(have []string, term string) bool {
	term = strings.ToLower(term)
	for _, h := range have {
		if strings.Contains(strings.ToLower(h), term) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
