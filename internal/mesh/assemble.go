package mesh

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"meshmap/core-go/internal/classify"
	"meshmap/core-go/internal/geo"
	"meshmap/core-go/internal/naming"
)

// AirplaneAltitudeMeters is the altitude above which a node is assumed to be airborne.
const AirplaneAltitudeMeters = 750.0

// TracerouteLimit caps how many of the newest traceroutes a snapshot reads.
const TracerouteLimit = 100

// NodeRow is a node as stored by the node-tracking database.
type NodeRow struct {
	ID         string
	ShortName  *string
	LongName   *string
	Latitude   *float64
	Longitude  *float64
	Altitude   *float64
	Battery    *int
	LastSeen   *time.Time
	HWModel    *string
	IsIgnored  bool
	IsAirplane bool
}

// LinkRow is an aggregated topology link observed within the time window.
type LinkRow struct {
	SourceID     string
	NeighborID   string
	AvgSNR       *float64
	AvgRSSI      *float64
	TotalPackets int
	LastHeard    *time.Time
}

// TracerouteRow is one recorded traceroute. Route lists the node ids hop by
// hop; SNR[i] is the SNR measured on the hop from Route[i] to Route[i+1].
type TracerouteRow struct {
	Route      []string
	SNR        []*float64
	ReceivedAt time.Time
}

// DecodeTracerouteRow parses the stored JSON route and SNR arrays. A row
// whose route does not decode is reported as not ok; a bad SNR array only
// loses the SNR values.
func DecodeTracerouteRow(routeJSON, snrJSON []byte, receivedAt time.Time) (TracerouteRow, bool) {
	row := TracerouteRow{ReceivedAt: receivedAt}
	if err := json.Unmarshal(routeJSON, &row.Route); err != nil || len(row.Route) < 2 {
		return TracerouteRow{}, false
	}
	if len(snrJSON) > 0 {
		if err := json.Unmarshal(snrJSON, &row.SNR); err != nil {
			row.SNR = nil
		}
	}
	return row, true
}

// RelayRow is the minimum hops_away seen for NodeID when its packets arrived
// through RelayNodeID.
type RelayRow struct {
	RelayNodeID string
	NodeID      string
	HopsAway    int
}

// Assemble turns database rows into a snapshot. Nodes without a position are
// left out, and so is everything that references them. Traceroute hops become
// connections only where no topology link covers the same (from, to) pair.
func Assemble(nodes []NodeRow, links []LinkRow, traces []TracerouteRow, relays []RelayRow, windowHours float64, now time.Time) Snapshot {
	s := Snapshot{
		Nodes:             make([]Node, 0, len(nodes)),
		DirectConnections: make([]DirectConnection, 0, len(links)),
		IndirectCoverage:  []IndirectCoverageRecord{},
		WindowHours:       windowHours,
		FetchedAt:         now.UTC(),
	}

	mapped := make(map[string]struct{}, len(nodes))
	for _, row := range nodes {
		n, ok := nodeFromRow(row)
		if !ok {
			continue
		}
		if _, dup := mapped[n.ID]; dup {
			continue
		}
		mapped[n.ID] = struct{}{}
		s.Nodes = append(s.Nodes, n)
	}

	pairs := make(map[[2]string]struct{}, len(links))
	for _, l := range links {
		pairs[[2]string{l.SourceID, l.NeighborID}] = struct{}{}
	}
	for _, l := range links {
		if l.SourceID == l.NeighborID {
			continue
		}
		if _, ok := mapped[l.SourceID]; !ok {
			continue
		}
		if _, ok := mapped[l.NeighborID]; !ok {
			continue
		}
		_, reverse := pairs[[2]string{l.NeighborID, l.SourceID}]
		s.DirectConnections = append(s.DirectConnections, DirectConnection{
			From:          l.SourceID,
			To:            l.NeighborID,
			RSSI:          l.AvgRSSI,
			SNR:           l.AvgSNR,
			PacketCount:   l.TotalPackets,
			Source:        SourceTopology,
			Confidence:    classify.ObservationConfidence(l.TotalPackets),
			LastHeardUTC:  l.LastHeard,
			Bidirectional: reverse,
		})
	}

	s.DirectConnections = append(s.DirectConnections, traceHops(traces, mapped, pairs)...)
	s.IndirectCoverage = groupRelays(relays, mapped)
	return s
}

// traceHops expands traceroutes into one connection per consecutive hop pair.
// traces are expected newest first: a pair seen again keeps the newest SNR and
// time and counts the extra observation.
func traceHops(traces []TracerouteRow, mapped map[string]struct{}, topology map[[2]string]struct{}) []DirectConnection {
	var out []DirectConnection
	index := make(map[[2]string]int)
	for _, tr := range traces {
		for i := 0; i+1 < len(tr.Route); i++ {
			from, to := tr.Route[i], tr.Route[i+1]
			if from == to {
				continue
			}
			if _, ok := mapped[from]; !ok {
				continue
			}
			if _, ok := mapped[to]; !ok {
				continue
			}
			key := [2]string{from, to}
			if _, ok := topology[key]; ok {
				continue
			}
			if j, ok := index[key]; ok {
				out[j].PacketCount++
				continue
			}

			var snr *float64
			if i < len(tr.SNR) {
				snr = tr.SNR[i]
			}
			heard := tr.ReceivedAt.UTC()
			index[key] = len(out)
			out = append(out, DirectConnection{
				From:         from,
				To:           to,
				SNR:          snr,
				PacketCount:  1,
				Source:       SourceTraceroute,
				LastHeardUTC: &heard,
			})
		}
	}

	for i := range out {
		out[i].Confidence = classify.ObservationConfidence(out[i].PacketCount)
		rev := [2]string{out[i].To, out[i].From}
		_, inTopology := topology[rev]
		_, inTraces := index[rev]
		out[i].Bidirectional = inTopology || inTraces
	}
	return out
}

func nodeFromRow(row NodeRow) (Node, bool) {
	id := strings.TrimSpace(row.ID)
	if id == "" || row.Latitude == nil || row.Longitude == nil {
		return Node{}, false
	}
	// 0,0 is what firmware reports before it has a fix.
	if *row.Latitude == 0 && *row.Longitude == 0 {
		return Node{}, false
	}

	longName := deref(row.LongName)
	shortName := deref(row.ShortName)

	airplane := row.IsAirplane
	if row.Altitude != nil && *row.Altitude > AirplaneAltitudeMeters {
		airplane = true
	}

	return Node{
		ID: id,
		Position: geo.Position{
			Lat: *row.Latitude,
			Lon: *row.Longitude,
			Alt: row.Altitude,
		},
		ShortName:    naming.ShortName(id, shortName),
		Name:         naming.NodeDisplayName(id, longName, shortName),
		Battery:      row.Battery,
		LastHeardUTC: row.LastSeen,
		HWModel:      deref(row.HWModel),
		IsAirplane:   airplane,
		IsIgnored:    row.IsIgnored,
	}, true
}

func groupRelays(relays []RelayRow, mapped map[string]struct{}) []IndirectCoverageRecord {
	minHops := make(map[string]map[string]int)
	for _, r := range relays {
		// Partial relay ids (last byte only) cannot be resolved to a node.
		if !strings.HasPrefix(r.RelayNodeID, "!") || r.RelayNodeID == r.NodeID {
			continue
		}
		if _, ok := mapped[r.RelayNodeID]; !ok {
			continue
		}
		if _, ok := TierForHopsAway(r.HopsAway); !ok {
			continue
		}
		members := minHops[r.RelayNodeID]
		if members == nil {
			members = make(map[string]int)
			minHops[r.RelayNodeID] = members
		}
		if prev, ok := members[r.NodeID]; !ok || r.HopsAway < prev {
			members[r.NodeID] = r.HopsAway
		}
	}

	relayIDs := make([]string, 0, len(minHops))
	for id := range minHops {
		relayIDs = append(relayIDs, id)
	}
	sort.Strings(relayIDs)

	out := make([]IndirectCoverageRecord, 0, len(relayIDs))
	for _, relayID := range relayIDs {
		rec := IndirectCoverageRecord{RelayNodeID: relayID}
		for nodeID, hops := range minHops[relayID] {
			tier, _ := TierForHopsAway(hops)
			rec.setMembers(tier, append(rec.Members(tier), nodeID))
		}
		for _, tier := range Tiers {
			sort.Strings(rec.Members(tier))
		}
		out = append(out, rec)
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
