// Package render assembles the immutable model handed to the map renderer.
package render

import (
	"time"

	"meshmap/core-go/internal/classify"
	"meshmap/core-go/internal/coverage"
	"meshmap/core-go/internal/geo"
	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/selection"
)

// Style holds the opacities the renderer applies.
type Style struct {
	SelectedOpacity     float64 `yaml:"selected_opacity" json:"selectedOpacity"`
	SelectedFillOpacity float64 `yaml:"selected_fill_opacity" json:"selectedFillOpacity"`
	LineOpacity         float64 `yaml:"line_opacity" json:"lineOpacity"`
	ShapeFillOpacity    float64 `yaml:"shape_fill_opacity" json:"shapeFillOpacity"`
	ShapeOpacity        float64 `yaml:"shape_opacity" json:"shapeOpacity"`
	CircleOpacity       float64 `yaml:"circle_opacity" json:"circleOpacity"`
}

func DefaultStyle() Style {
	return Style{
		SelectedOpacity:     0.9,
		SelectedFillOpacity: 0.35,
		LineOpacity:         0.6,
		ShapeFillOpacity:    0.15,
		ShapeOpacity:        0.5,
		CircleOpacity:       0.2,
	}
}

type Marker struct {
	mesh.Node
	Color string `json:"color"`
}

type StyledLine struct {
	ID            string              `json:"id"`
	From          string              `json:"from"`
	To            string              `json:"to"`
	FromPos       geo.LatLon          `json:"fromPos"`
	ToPos         geo.LatLon          `json:"toPos"`
	Color         string              `json:"color"`
	ColorTier     classify.ColorTier  `json:"colorTier"`
	Weight        int                 `json:"weight"`
	Dashed        bool                `json:"dashed"`
	DashArray     string              `json:"dashArray,omitempty"`
	Opacity       float64             `json:"opacity"`
	Related       bool                `json:"related"`
	Visible       bool                `json:"visible"`
	RSSI          *float64            `json:"rssi,omitempty"`
	SNR           *float64            `json:"snr,omitempty"`
	PacketCount   int                 `json:"packetCount"`
	Confidence    classify.Confidence `json:"confidence"`
	Source        string              `json:"source,omitempty"`
	QualityScore  float64             `json:"qualityScore"`
	Bidirectional bool                `json:"bidirectional"`
}

type StyledShape struct {
	ID             string       `json:"id"`
	RelayNodeID    string       `json:"relayNodeId"`
	Tier           mesh.Tier    `json:"tier"`
	MemberIDs      []string     `json:"memberIds"`
	Points         []geo.LatLon `json:"points"`
	MaxRangeMeters float64      `json:"maxRangeMeters"`
	Color          string       `json:"color"`
	FillOpacity    float64      `json:"fillOpacity"`
	Opacity        float64      `json:"opacity"`
	Related        bool         `json:"related"`
	Visible        bool         `json:"visible"`
	LegacyOutline  []geo.LatLon `json:"legacyOutline,omitempty"`
}

type StyledCircle struct {
	ID               string              `json:"id"`
	NodeID           string              `json:"nodeId"`
	Center           geo.LatLon          `json:"center"`
	RadiusMeters     float64             `json:"radiusMeters"`
	AvgSNR           float64             `json:"avgSnr"`
	MinSNR           float64             `json:"minSnr"`
	Confidence       classify.Confidence `json:"confidence"`
	ObservationCount int                 `json:"observationCount"`
	PacketCount      int                 `json:"packetCount"`
	Color            string              `json:"color"`
	Opacity          float64             `json:"opacity"`
	Related          bool                `json:"related"`
	Visible          bool                `json:"visible"`
}

type Stats struct {
	TotalNodes         int         `json:"totalNodes"`
	MappedNodes        int         `json:"mappedNodes"`
	IgnoredNodes       int         `json:"ignoredNodes"`
	AirplaneNodes      int         `json:"airplaneNodes"`
	Lines              int         `json:"lines"`
	BidirectionalLines int         `json:"bidirectionalLines"`
	TracerouteLines    int         `json:"tracerouteConnections"`
	Shapes             int         `json:"shapes"`
	Circles            int         `json:"circles"`
	Violations         int         `json:"violations"`
	IgnoredNodeIDs     []string    `json:"ignoredNodeIds,omitempty"`
	AirplaneNodeIDs    []string    `json:"airplaneNodeIds,omitempty"`
	// Center is the mean position of all markers.
	Center *geo.LatLon `json:"center,omitempty"`
}

// Model is everything the renderer needs for one snapshot. A new Model is
// built per snapshot; selection and layer changes produce a copy with new
// presentation flags and the same geometry.
type Model struct {
	Revision        string                    `json:"revision"`
	GeneratedAt     time.Time                 `json:"generatedAt"`
	WindowHours     float64                   `json:"windowHours"`
	Markers         []Marker                  `json:"markers"`
	Lines           []StyledLine              `json:"lines"`
	Shapes          []StyledShape             `json:"shapes"`
	Circles         []StyledCircle            `json:"circles"`
	Hull            []geo.LatLon              `json:"hull"`
	Selection       selection.Snapshot        `json:"selection"`
	LayerVisibility selection.LayerVisibility `json:"layerVisibility"`
	Stats           Stats                     `json:"stats"`

	style Style
	// conns and shapes are the sources of Lines and Shapes, kept so selection
	// changes can recompute the relation table without a rebuild.
	conns  []mesh.DirectConnection
	shapes []coverage.Shape
}

// HasNode reports whether id is one of the markers.
func (m Model) HasNode(id string) bool {
	for _, mk := range m.Markers {
		if mk.ID == id {
			return true
		}
	}
	return false
}

// HasShape reports whether id is one of the shapes.
func (m Model) HasShape(id string) bool {
	for _, s := range m.Shapes {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Exists resolves a selection against the model.
func (m Model) Exists(kind selection.Kind, id string) bool {
	switch kind {
	case selection.KindNode:
		return m.HasNode(id)
	case selection.KindShape:
		return m.HasShape(id)
	default:
		return false
	}
}
