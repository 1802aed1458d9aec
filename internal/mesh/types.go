// Package mesh holds the snapshot data model and the filter that prepares a
// snapshot for geometry derivation.
package mesh

import (
	"errors"
	"time"

	"meshmap/core-go/internal/classify"
	"meshmap/core-go/internal/geo"
)

// ErrNodeNotFound is returned by snapshot sources for unknown node ids.
var ErrNodeNotFound = errors.New("node not found")

// Node is a mesh node as reported by the telemetry backend.
type Node struct {
	ID           string       `json:"id"`
	Position     geo.Position `json:"position"`
	ShortName    string       `json:"shortName"`
	Name         string       `json:"name"`
	Battery      *int         `json:"battery,omitempty"`
	LastHeardUTC *time.Time   `json:"lastHeard,omitempty"`
	HWModel      string       `json:"hwModel,omitempty"`
	IsAirplane   bool         `json:"isAirplane"`
	IsIgnored    bool         `json:"isIgnored"`
}

func (n Node) LatLon() geo.LatLon {
	return n.Position.LatLon()
}

// Connection sources.
const (
	SourceTopology   = "topology"
	SourceTraceroute = "traceroute"
)

// DirectConnection is a verified link between two nodes. Endpoint order is not
// significant for styling, but (From, To) identifies the edge.
type DirectConnection struct {
	From          string              `json:"from"`
	To            string              `json:"to"`
	RSSI          *float64            `json:"rssi,omitempty"`
	SNR           *float64            `json:"snr,omitempty"`
	PacketCount   int                 `json:"packets"`
	Source        string              `json:"source,omitempty"`
	Confidence    classify.Confidence `json:"confidence"`
	LastHeardUTC  *time.Time          `json:"lastHeard,omitempty"`
	Bidirectional bool                `json:"bidirectional,omitempty"`
}

// ID is the stable edge identifier.
func (c DirectConnection) ID() string {
	return c.From + "->" + c.To
}

// Touches reports whether nodeID is one of the endpoints.
func (c DirectConnection) Touches(nodeID string) bool {
	return c.From == nodeID || c.To == nodeID
}

// Snapshot is one time-windowed view of the mesh. Each snapshot is
// authoritative and replaces all previous state.
type Snapshot struct {
	Nodes             []Node                   `json:"nodes"`
	DirectConnections []DirectConnection       `json:"directConnections"`
	IndirectCoverage  []IndirectCoverageRecord `json:"indirectCoverage"`
	WindowHours       float64                  `json:"windowHours,omitempty"`
	FetchedAt         time.Time                `json:"fetchedAt,omitempty"`
}

// NodeByID returns the first node with the given id.
func (s Snapshot) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
