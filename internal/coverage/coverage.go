// Package coverage derives coverage polygons and signal-range circles from a
// filtered snapshot.
package coverage

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"meshmap/core-go/internal/classify"
	"meshmap/core-go/internal/geo"
	"meshmap/core-go/internal/mesh"
)

// Options tunes the builder.
type Options struct {
	// LegacyEllipse attaches the superseded ellipse outline to every shape.
	LegacyEllipse bool
	// EllipseSamples is the number of outline points per ellipse (default 36).
	EllipseSamples int
}

// Shape is the convex hull around a relay and the nodes it carries traffic
// for in one hop tier.
type Shape struct {
	ID             string       `json:"id"`
	RelayNodeID    string       `json:"relayNodeId"`
	Tier           mesh.Tier    `json:"tier"`
	MemberIDs      []string     `json:"memberIds"`
	HullPoints     []geo.LatLon `json:"hullPoints"`
	MaxRangeMeters float64      `json:"maxRangeMeters"`
	LegacyOutline  []geo.LatLon `json:"legacyOutline,omitempty"`
}

// Circle is an SNR based range estimate around a node.
type Circle struct {
	NodeID                string              `json:"nodeId"`
	Center                geo.LatLon          `json:"center"`
	AvgSNR                float64             `json:"avgSnr"`
	MinSNR                float64             `json:"minSnr"`
	EstimatedRadiusMeters float64             `json:"estimatedRadiusMeters"`
	Confidence            classify.Confidence `json:"confidence"`
	ObservationCount      int                 `json:"observationCount"`
	PacketCount           int                 `json:"packetCount"`
}

// Result holds everything derived from one snapshot. It is rebuilt from
// scratch every time.
type Result struct {
	Shapes      []Shape
	NetworkHull []geo.LatLon
	Circles     []Circle
	Violations  []mesh.TierViolation
}

// ShapeID is the stable identifier of the shape for relayID and tier.
func ShapeID(relayID string, tier mesh.Tier) string {
	return relayID + ":" + string(tier)
}

// Build derives shapes, the network hull and signal circles. Unresolvable ids
// and point sets too small for a polygon are skipped, never reported.
func Build(f mesh.Filtered, opts Options) Result {
	if opts.EllipseSamples <= 0 {
		opts.EllipseSamples = 36
	}

	res := Result{
		Shapes:     []Shape{},
		Circles:    []Circle{},
		Violations: append([]mesh.TierViolation(nil), f.Violations...),
	}

	for _, rec := range f.Coverage {
		relay, ok := f.Node(rec.RelayNodeID)
		if !ok || f.IsAirplane(rec.RelayNodeID) {
			continue
		}
		for _, tier := range mesh.Tiers {
			if shape, ok := buildShape(f, relay, tier, rec.Members(tier), opts); ok {
				res.Shapes = append(res.Shapes, shape)
			}
		}
	}
	sort.Slice(res.Shapes, func(i, j int) bool { return res.Shapes[i].ID < res.Shapes[j].ID })

	res.NetworkHull = networkHull(f)
	res.Circles = signalCircles(f)
	return res
}

func buildShape(f mesh.Filtered, relay mesh.Node, tier mesh.Tier, memberIDs []string, opts Options) (Shape, bool) {
	relayPos := relay.LatLon()

	members := make([]string, 0, len(memberIDs))
	points := make([]geo.LatLon, 0, len(memberIDs)+1)
	memberPoints := make([]geo.LatLon, 0, len(memberIDs))
	points = append(points, relayPos)

	maxRange := 0.0
	for _, id := range memberIDs {
		if f.IsAirplane(id) {
			continue
		}
		n, ok := f.Node(id)
		if !ok {
			continue
		}
		p := n.LatLon()
		members = append(members, id)
		points = append(points, p)
		memberPoints = append(memberPoints, p)
		if d := geo.DistanceMeters(relayPos, p); d > maxRange {
			maxRange = d
		}
	}
	if len(members) == 0 {
		return Shape{}, false
	}

	hull := geo.ConvexHull(points)
	if !geo.IsPolygon(hull) {
		return Shape{}, false
	}

	shape := Shape{
		ID:             ShapeID(relay.ID, tier),
		RelayNodeID:    relay.ID,
		Tier:           tier,
		MemberIDs:      members,
		HullPoints:     hull,
		MaxRangeMeters: maxRange,
	}
	if opts.LegacyEllipse {
		if e, ok := geo.FitEllipse(relayPos, memberPoints); ok {
			shape.LegacyOutline = e.Outline(opts.EllipseSamples)
		}
	}
	return shape, true
}

func networkHull(f mesh.Filtered) []geo.LatLon {
	points := make([]geo.LatLon, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		if f.IsAirplane(n.ID) {
			continue
		}
		points = append(points, n.LatLon())
	}
	hull := geo.ConvexHull(points)
	if !geo.IsPolygon(hull) {
		return nil
	}
	return hull
}

type snrSamples struct {
	values  []float64
	packets int
}

func signalCircles(f mesh.Filtered) []Circle {
	byNode := make(map[string]*snrSamples)
	add := func(id string, snr float64, packets int) {
		s := byNode[id]
		if s == nil {
			s = &snrSamples{}
			byNode[id] = s
		}
		s.values = append(s.values, snr)
		s.packets += packets
	}
	for _, c := range f.Connections {
		if c.SNR == nil {
			continue
		}
		add(c.From, *c.SNR, c.PacketCount)
		add(c.To, *c.SNR, c.PacketCount)
	}

	ids := make([]string, 0, len(byNode))
	for id := range byNode {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	circles := make([]Circle, 0, len(ids))
	for _, id := range ids {
		n, ok := f.Node(id)
		if !ok {
			continue
		}
		s := byNode[id]
		avg := floats.Sum(s.values) / float64(len(s.values))
		circles = append(circles, Circle{
			NodeID:                id,
			Center:                n.LatLon(),
			AvgSNR:                avg,
			MinSNR:                floats.Min(s.values),
			EstimatedRadiusMeters: geo.EstimateRangeMeters(avg),
			Confidence:            classify.ObservationConfidence(s.packets),
			ObservationCount:      len(s.values),
			PacketCount:           s.packets,
		})
	}
	return circles
}
