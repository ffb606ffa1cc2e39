// Package geo provides great-circle distance helpers used to rank units
// before authoritative routing.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceKm returns the haversine distance between a and b in kilometers.
func DistanceKm(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	return haversine(lat1, math.Cos(lat1), lat2, radians(b.Lng)-radians(a.Lng))
}

// DistancesKm computes the distance from ref to every point in pts in a single
// pass. The result is written into dst, which is grown only when its capacity
// is insufficient.
func DistancesKm(ref Point, pts []Point, dst []float64) []float64 {
	if cap(dst) < len(pts) {
		dst = make([]float64, len(pts))
	}
	dst = dst[:len(pts)]
	refLat := radians(ref.Lat)
	refCos := math.Cos(refLat)
	refLng := radians(ref.Lng)
	for i, p := range pts {
		dst[i] = haversine(refLat, refCos, radians(p.Lat), radians(p.Lng)-refLng)
	}
	return dst
}

func haversine(lat1, cosLat1, lat2, dLng float64) float64 {
	dLat := lat2 - lat1
	sLat := math.Sin(dLat / 2)
	sLng := math.Sin(dLng / 2)
	h := sLat*sLat + cosLat1*math.Cos(lat2)*sLng*sLng
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
