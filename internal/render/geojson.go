package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"meshmap/core-go/internal/geo"
)

// GeoJSON exports the model as a feature collection. Each feature carries a
// "kind" property: node, link, coverage, hull or signal_circle. Circles are
// points with a radius_m property since GeoJSON has no circle geometry.
func GeoJSON(m Model) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, mk := range m.Markers {
		f := geojson.NewFeature(geo.ToOrbPoint(mk.LatLon()))
		f.ID = mk.ID
		f.Properties["kind"] = "node"
		f.Properties["name"] = mk.Name
		f.Properties["short_name"] = mk.ShortName
		f.Properties["is_airplane"] = mk.IsAirplane
		f.Properties["is_ignored"] = mk.IsIgnored
		f.Properties["color"] = mk.Color
		if mk.Position.Alt != nil {
			f.Properties["altitude"] = *mk.Position.Alt
		}
		if mk.Battery != nil {
			f.Properties["battery"] = *mk.Battery
		}
		fc.Append(f)
	}

	for _, l := range m.Lines {
		f := geojson.NewFeature(geo.ToOrbLineString([]geo.LatLon{l.FromPos, l.ToPos}))
		f.ID = l.ID
		f.Properties["kind"] = "link"
		f.Properties["from"] = l.From
		f.Properties["to"] = l.To
		f.Properties["color"] = l.Color
		f.Properties["weight"] = l.Weight
		f.Properties["dashed"] = l.Dashed
		f.Properties["confidence"] = string(l.Confidence)
		f.Properties["packets"] = l.PacketCount
		f.Properties["quality_score"] = l.QualityScore
		f.Properties["bidirectional"] = l.Bidirectional
		f.Properties["visible"] = l.Visible
		if l.RSSI != nil {
			f.Properties["rssi"] = *l.RSSI
		}
		if l.SNR != nil {
			f.Properties["snr"] = *l.SNR
		}
		fc.Append(f)
	}

	for _, s := range m.Shapes {
		f := geojson.NewFeature(orb.Polygon{geo.ToOrbRing(s.Points)})
		f.ID = s.ID
		f.Properties["kind"] = "coverage"
		f.Properties["relay_node_id"] = s.RelayNodeID
		f.Properties["tier"] = string(s.Tier)
		f.Properties["member_ids"] = s.MemberIDs
		f.Properties["max_range_m"] = s.MaxRangeMeters
		f.Properties["color"] = s.Color
		f.Properties["visible"] = s.Visible
		fc.Append(f)
	}

	if len(m.Hull) >= 3 {
		f := geojson.NewFeature(orb.Polygon{geo.ToOrbRing(m.Hull)})
		f.ID = "network_hull"
		f.Properties["kind"] = "hull"
		fc.Append(f)
	}

	for _, c := range m.Circles {
		f := geojson.NewFeature(geo.ToOrbPoint(c.Center))
		f.ID = c.ID
		f.Properties["kind"] = "signal_circle"
		f.Properties["node_id"] = c.NodeID
		f.Properties["radius_m"] = c.RadiusMeters
		f.Properties["avg_snr"] = c.AvgSNR
		f.Properties["min_snr"] = c.MinSNR
		f.Properties["confidence"] = string(c.Confidence)
		f.Properties["observations"] = c.ObservationCount
		f.Properties["color"] = c.Color
		f.Properties["visible"] = c.Visible
		fc.Append(f)
	}

	return fc
}
