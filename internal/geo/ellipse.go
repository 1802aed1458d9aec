package geo

import (
	"math"
	"sort"
)

// Ellipse is the legacy coverage shape: an ellipse centred on a relay node.
//
// Deprecated: coverage shapes are convex hulls. FitEllipse is kept only for
// renderers that still draw the old ellipse overlay.
type Ellipse struct {
	Center          LatLon  `json:"center"`
	SemiMajorMeters float64 `json:"semi_major_m"`
	SemiMinorMeters float64 `json:"semi_minor_m"`
	// BearingDegrees is the major axis direction, clockwise from north.
	BearingDegrees float64 `json:"bearing_deg"`
}

const (
	ellipseFitNodes    = 4
	ellipseMinAxisRate = 0.3
	ellipsePaddingRate = 1.1
)

// FitEllipse fits the legacy ellipse from the (up to) four members farthest from
// center. The farthest member sets the major axis; the largest perpendicular
// offset of the others sets the minor axis, floored at 30% of the major axis.
func FitEllipse(center LatLon, members []LatLon) (Ellipse, bool) {
	type offset struct {
		east, north, dist float64
	}
	offsets := make([]offset, 0, len(members))
	for _, m := range members {
		e, n := localMeters(center, m)
		d := math.Hypot(e, n)
		if d == 0 {
			continue
		}
		offsets = append(offsets, offset{east: e, north: n, dist: d})
	}
	if len(offsets) == 0 {
		return Ellipse{}, false
	}
	sort.SliceStable(offsets, func(i, j int) bool { return offsets[i].dist > offsets[j].dist })
	if len(offsets) > ellipseFitNodes {
		offsets = offsets[:ellipseFitNodes]
	}

	major := offsets[0]
	ux, uy := major.east/major.dist, major.north/major.dist

	minor := 0.0
	for _, o := range offsets[1:] {
		perp := math.Abs(o.east*uy - o.north*ux)
		if perp > minor {
			minor = perp
		}
	}

	a := major.dist * ellipsePaddingRate
	b := math.Max(minor*ellipsePaddingRate, a*ellipseMinAxisRate)

	bearing := math.Atan2(major.east, major.north) / degToRad
	if bearing < 0 {
		bearing += 360
	}

	return Ellipse{
		Center:          center,
		SemiMajorMeters: a,
		SemiMinorMeters: b,
		BearingDegrees:  bearing,
	}, true
}

// Outline samples n points along the ellipse boundary.
func (e Ellipse) Outline(n int) []LatLon {
	if n < 3 {
		n = 3
	}
	theta := e.BearingDegrees * degToRad
	// unit vectors of the major and minor axes in (east, north)
	mx, my := math.Sin(theta), math.Cos(theta)
	nx, ny := -my, mx

	out := make([]LatLon, 0, n)
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		a := e.SemiMajorMeters * math.Cos(t)
		b := e.SemiMinorMeters * math.Sin(t)
		out = append(out, fromLocalMeters(e.Center, a*mx+b*nx, a*my+b*ny))
	}
	return out
}

// localMeters projects p onto an equirectangular plane tangent at origin.
func localMeters(origin, p LatLon) (east, north float64) {
	east = (p.Lon - origin.Lon) * degToRad * EarthRadiusMeters * math.Cos(origin.Lat*degToRad)
	north = (p.Lat - origin.Lat) * degToRad * EarthRadiusMeters
	return east, north
}

func fromLocalMeters(origin LatLon, east, north float64) LatLon {
	lat := origin.Lat + north/EarthRadiusMeters/degToRad
	cosLat := math.Cos(origin.Lat * degToRad)
	if cosLat == 0 {
		return LatLon{Lat: lat, Lon: origin.Lon}
	}
	lon := origin.Lon + east/(EarthRadiusMeters*cosLat)/degToRad
	return LatLon{Lat: lat, Lon: lon}
}
