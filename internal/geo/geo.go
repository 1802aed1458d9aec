package geo

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// EarthRadiusMeters is the mean Earth radius used for every distance in the map.
const EarthRadiusMeters = 6371000.0

const degToRad = math.Pi / 180

// LatLon is a WGS84 coordinate in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Position is a node location as reported by telemetry.
type Position struct {
	Lat float64  `json:"lat"`
	Lon float64  `json:"lon"`
	Alt *float64 `json:"alt,omitempty"`
}

func (p Position) LatLon() LatLon {
	return LatLon{Lat: p.Lat, Lon: p.Lon}
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b LatLon) float64 {
	if a == b {
		return 0
	}
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad

	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + sinLon*sinLon*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// ToOrbPoint converts to orb's [lon, lat] ordering.
func ToOrbPoint(p LatLon) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// ToOrbLineString converts a polyline to orb's [lon, lat] ordering.
func ToOrbLineString(points []LatLon) orb.LineString {
	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, ToOrbPoint(p))
	}
	return ls
}

// ToOrbRing returns a closed ring with counter-clockwise winding in lon/lat space,
// the orientation GeoJSON expects for exterior rings.
func ToOrbRing(points []LatLon) orb.Ring {
	if len(points) == 0 {
		return nil
	}
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, ToOrbPoint(p))
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}
	return ring
}

// Center returns the mean position of points.
func Center(points []LatLon) (LatLon, bool) {
	if len(points) == 0 {
		return LatLon{}, false
	}
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i], lons[i] = p.Lat, p.Lon
	}
	return LatLon{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}, true
}
