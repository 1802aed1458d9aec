package geo

import "sort"

// ConvexHull computes the convex hull of points with Andrew's monotone chain.
//
// Points are ordered by latitude, then longitude. The hull is returned
// counter-clockwise in (lat, lon) space without a repeated closing point, and
// collinear boundary points are dropped. When fewer than 3 distinct points are
// supplied the input is returned unchanged; callers must treat any result with
// fewer than 3 vertices as "no polygon".
func ConvexHull(points []LatLon) []LatLon {
	pts := distinctSorted(points)
	if len(pts) < 3 {
		return points
	}

	lower := make([]LatLon, 0, len(pts))
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	upper := make([]LatLon, 0, len(pts))
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := make([]LatLon, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

// IsPolygon reports whether a hull result describes a drawable polygon.
func IsPolygon(hull []LatLon) bool {
	return len(distinctSorted(hull)) >= 3
}

// cross is the z component of (a-o) x (b-o) with latitude as the x axis.
func cross(o, a, b LatLon) float64 {
	return (a.Lat-o.Lat)*(b.Lon-o.Lon) - (a.Lon-o.Lon)*(b.Lat-o.Lat)
}

func distinctSorted(points []LatLon) []LatLon {
	pts := make([]LatLon, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Lat != pts[j].Lat {
			return pts[i].Lat < pts[j].Lat
		}
		return pts[i].Lon < pts[j].Lon
	})

	out := make([]LatLon, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}
