package render

import (
	"time"

	"github.com/google/uuid"

	"meshmap/core-go/internal/classify"
	"meshmap/core-go/internal/coverage"
	"meshmap/core-go/internal/geo"
	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/selection"
)

const (
	markerColor         = "#2563eb"
	airplaneMarkerColor = "#f59e0b"
	ignoredMarkerColor  = "#9ca3af"
)

// Build derives a fresh model. Geometry comes from f and cov; sel and vis
// only drive presentation flags.
func Build(snap mesh.Snapshot, f mesh.Filtered, cov coverage.Result, sel selection.Snapshot, vis selection.LayerVisibility, style Style) Model {
	m := Model{
		Revision:    uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		WindowHours: snap.WindowHours,
		Markers:     markers(snap, f),
		Lines:       make([]StyledLine, 0, len(f.Connections)),
		Shapes:      make([]StyledShape, 0, len(cov.Shapes)),
		Circles:     make([]StyledCircle, 0, len(cov.Circles)),
		Hull:        cov.NetworkHull,
		style:       style,
		conns:       make([]mesh.DirectConnection, 0, len(f.Connections)),
		shapes:      cov.Shapes,
	}

	for _, c := range f.Connections {
		from, okFrom := f.Node(c.From)
		to, okTo := f.Node(c.To)
		if !okFrom || !okTo {
			continue
		}
		m.conns = append(m.conns, c)
		tier := classify.ConnectionColorTier(c.RSSI, c.SNR)
		ls := classify.LineStyleForConfidence(c.Confidence)
		m.Lines = append(m.Lines, StyledLine{
			ID:            c.ID(),
			From:          c.From,
			To:            c.To,
			FromPos:       from.LatLon(),
			ToPos:         to.LatLon(),
			Color:         tier.Color(),
			ColorTier:     tier,
			Weight:        ls.Weight,
			Dashed:        ls.Dashed,
			DashArray:     ls.DashArray,
			RSSI:          c.RSSI,
			SNR:           c.SNR,
			PacketCount:   c.PacketCount,
			Confidence:    classify.NormalizeConfidence(string(c.Confidence)),
			Source:        c.Source,
			QualityScore:  classify.LinkQualityScore(c.SNR, c.RSSI, c.PacketCount),
			Bidirectional: c.Bidirectional,
		})
	}

	for _, s := range cov.Shapes {
		m.Shapes = append(m.Shapes, StyledShape{
			ID:             s.ID,
			RelayNodeID:    s.RelayNodeID,
			Tier:           s.Tier,
			MemberIDs:      s.MemberIDs,
			Points:         s.HullPoints,
			MaxRangeMeters: s.MaxRangeMeters,
			Color:          classify.HopTierColor(string(s.Tier)),
			LegacyOutline:  s.LegacyOutline,
		})
	}

	for _, c := range cov.Circles {
		m.Circles = append(m.Circles, StyledCircle{
			ID:               "circle:" + c.NodeID,
			NodeID:           c.NodeID,
			Center:           c.Center,
			RadiusMeters:     c.EstimatedRadiusMeters,
			AvgSNR:           c.AvgSNR,
			MinSNR:           c.MinSNR,
			Confidence:       c.Confidence,
			ObservationCount: c.ObservationCount,
			PacketCount:      c.PacketCount,
			Color:            classify.CircleColor(c.Confidence),
		})
	}

	m.Stats = stats(m, f, cov)
	return ApplySelection(m, sel, vis)
}

// ApplySelection returns a copy of m with Related, Opacity and Visible
// recomputed for sel and vis. Geometry is shared, never recomputed; the
// related flags come from the selection's relation table over the model's
// source connections and shapes.
func ApplySelection(m Model, sel selection.Snapshot, vis selection.LayerVisibility) Model {
	if vis == nil {
		vis = selection.DefaultLayerVisibility()
	}
	style := m.style
	if style == (Style{}) {
		style = DefaultStyle()
	}

	out := m
	out.style = style
	out.Selection = sel
	out.LayerVisibility = vis.Clone()
	rel := sel.Relate(m.conns, m.shapes)

	out.Lines = make([]StyledLine, len(m.Lines))
	linesVisible := vis.Visible(selection.LayerDirectLinks)
	for i, l := range m.Lines {
		l.Related = rel.Lines[l.ID]
		l.Opacity = style.LineOpacity
		if l.Related {
			l.Opacity = style.SelectedOpacity
		}
		l.Visible = linesVisible
		out.Lines[i] = l
	}

	out.Shapes = make([]StyledShape, len(m.Shapes))
	for i, s := range m.Shapes {
		s.Related = rel.Shapes[s.ID]
		s.Opacity, s.FillOpacity = style.ShapeOpacity, style.ShapeFillOpacity
		if s.Related {
			s.Opacity, s.FillOpacity = style.SelectedOpacity, style.SelectedFillOpacity
		}
		s.Visible = vis.Visible(selection.LayerForTier(s.Tier))
		out.Shapes[i] = s
	}

	out.Circles = make([]StyledCircle, len(m.Circles))
	circlesVisible := vis.Visible(selection.LayerSignalCircles)
	for i, c := range m.Circles {
		c.Related = sel.RelatesToNode(c.NodeID)
		c.Opacity = style.CircleOpacity
		if c.Related {
			c.Opacity = style.SelectedOpacity
		}
		c.Visible = circlesVisible
		out.Circles[i] = c
	}
	return out
}

func markers(snap mesh.Snapshot, f mesh.Filtered) []Marker {
	out := make([]Marker, 0, len(snap.Nodes))
	seen := make(map[string]struct{}, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}

		color := markerColor
		switch {
		case f.IsIgnored(n.ID):
			color = ignoredMarkerColor
		case f.IsAirplane(n.ID):
			color = airplaneMarkerColor
		}
		out = append(out, Marker{Node: n, Color: color})
	}
	return out
}

func stats(m Model, f mesh.Filtered, cov coverage.Result) Stats {
	st := Stats{
		TotalNodes:      len(m.Markers),
		MappedNodes:     len(f.Nodes),
		IgnoredNodes:    len(f.Ignored),
		AirplaneNodes:   len(f.Airplanes),
		Lines:           len(m.Lines),
		Shapes:          len(m.Shapes),
		Circles:         len(m.Circles),
		Violations:      len(cov.Violations),
		IgnoredNodeIDs:  f.IgnoredIDs(),
		AirplaneNodeIDs: f.AirplaneIDs(),
	}
	for _, l := range m.Lines {
		if l.Bidirectional {
			st.BidirectionalLines++
		}
		if l.Source == mesh.SourceTraceroute {
			st.TracerouteLines++
		}
	}

	points := make([]geo.LatLon, 0, len(m.Markers))
	for _, mk := range m.Markers {
		points = append(points, mk.LatLon())
	}
	if c, ok := geo.Center(points); ok {
		st.Center = &c
	}
	return st
}
