package db

import (
	"context"
	"fmt"
	"time"

	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/sqlcgen"
)

// SnapshotQueries is the minimal DB interface the snapshot source needs.
// *sqlcgen.Queries satisfies this.
type SnapshotQueries interface {
	ListMapNodes(ctx context.Context) ([]sqlcgen.MapNode, error)
	ListTopologyLinks(ctx context.Context, since time.Time) ([]sqlcgen.TopologyLink, error)
	ListTraceroutes(ctx context.Context, arg sqlcgen.ListTraceroutesParams) ([]sqlcgen.Traceroute, error)
	ListRelayObservations(ctx context.Context, since time.Time) ([]sqlcgen.RelayObservation, error)
	SetNodeIgnored(ctx context.Context, arg sqlcgen.SetNodeIgnoredParams) (int64, error)
}

// Source reads snapshots from the node-tracking tables in Postgres.
type Source struct {
	q   SnapshotQueries
	now func() time.Time
}

func NewSource(q SnapshotQueries) *Source {
	return &Source{q: q, now: time.Now}
}

func (s *Source) FetchSnapshot(ctx context.Context, windowHours float64) (mesh.Snapshot, error) {
	now := s.now().UTC()
	since := now.Add(-time.Duration(windowHours * float64(time.Hour)))

	nodes, err := s.q.ListMapNodes(ctx)
	if err != nil {
		return mesh.Snapshot{}, fmt.Errorf("list nodes: %w", err)
	}
	links, err := s.q.ListTopologyLinks(ctx, since)
	if err != nil {
		return mesh.Snapshot{}, fmt.Errorf("list topology: %w", err)
	}
	traces, err := s.q.ListTraceroutes(ctx, sqlcgen.ListTraceroutesParams{Since: since, Limit: mesh.TracerouteLimit})
	if err != nil {
		return mesh.Snapshot{}, fmt.Errorf("list traceroutes: %w", err)
	}
	relays, err := s.q.ListRelayObservations(ctx, since)
	if err != nil {
		return mesh.Snapshot{}, fmt.Errorf("list relay observations: %w", err)
	}

	nodeRows := make([]mesh.NodeRow, 0, len(nodes))
	for _, n := range nodes {
		row := mesh.NodeRow{
			ID:         n.NodeID,
			ShortName:  n.ShortName,
			LongName:   n.LongName,
			Latitude:   n.Latitude,
			Longitude:  n.Longitude,
			Altitude:   n.Altitude,
			LastSeen:   n.LastSeenUTC,
			HWModel:    n.HardwareModel,
			IsIgnored:  n.IsIgnored,
			IsAirplane: n.IsAirplane,
		}
		if n.BatteryLevel != nil {
			b := int(*n.BatteryLevel)
			row.Battery = &b
		}
		nodeRows = append(nodeRows, row)
	}

	linkRows := make([]mesh.LinkRow, 0, len(links))
	for _, l := range links {
		lastHeard := l.LastHeardUTC
		linkRows = append(linkRows, mesh.LinkRow{
			SourceID:     l.SourceNodeID,
			NeighborID:   l.NeighborNodeID,
			AvgSNR:       l.AvgSNR,
			AvgRSSI:      l.AvgRSSI,
			TotalPackets: int(l.TotalPackets),
			LastHeard:    &lastHeard,
		})
	}

	traceRows := make([]mesh.TracerouteRow, 0, len(traces))
	for _, tr := range traces {
		if row, ok := mesh.DecodeTracerouteRow(tr.RouteJSON, tr.SnrData, tr.ReceivedAtUTC); ok {
			traceRows = append(traceRows, row)
		}
	}

	relayRows := make([]mesh.RelayRow, 0, len(relays))
	for _, r := range relays {
		relayRows = append(relayRows, mesh.RelayRow{
			RelayNodeID: r.RelayNodeID,
			NodeID:      r.NodeID,
			HopsAway:    int(r.MinHopsAway),
		})
	}

	return mesh.Assemble(nodeRows, linkRows, traceRows, relayRows, windowHours, now), nil
}

func (s *Source) SetNodeIgnored(ctx context.Context, nodeID string, ignored bool) error {
	n, err := s.q.SetNodeIgnored(ctx, sqlcgen.SetNodeIgnoredParams{NodeID: nodeID, Ignored: ignored})
	if err != nil {
		return fmt.Errorf("update node %s: %w", nodeID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", mesh.ErrNodeNotFound, nodeID)
	}
	return nil
}
