package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/sqlcgen"
)

type fakeQueries struct {
	nodesFn  func(ctx context.Context) ([]sqlcgen.MapNode, error)
	linksFn  func(ctx context.Context, since time.Time) ([]sqlcgen.TopologyLink, error)
	tracesFn func(ctx context.Context, arg sqlcgen.ListTraceroutesParams) ([]sqlcgen.Traceroute, error)
	relaysFn func(ctx context.Context, since time.Time) ([]sqlcgen.RelayObservation, error)
	ignoreFn func(ctx context.Context, arg sqlcgen.SetNodeIgnoredParams) (int64, error)
}

func (f *fakeQueries) ListMapNodes(ctx context.Context) ([]sqlcgen.MapNode, error) {
	if f.nodesFn == nil {
		return nil, nil
	}
	return f.nodesFn(ctx)
}

func (f *fakeQueries) ListTopologyLinks(ctx context.Context, since time.Time) ([]sqlcgen.TopologyLink, error) {
	if f.linksFn == nil {
		return nil, nil
	}
	return f.linksFn(ctx, since)
}

func (f *fakeQueries) ListTraceroutes(ctx context.Context, arg sqlcgen.ListTraceroutesParams) ([]sqlcgen.Traceroute, error) {
	if f.tracesFn == nil {
		return nil, nil
	}
	return f.tracesFn(ctx, arg)
}

func (f *fakeQueries) ListRelayObservations(ctx context.Context, since time.Time) ([]sqlcgen.RelayObservation, error) {
	if f.relaysFn == nil {
		return nil, nil
	}
	return f.relaysFn(ctx, since)
}

func (f *fakeQueries) SetNodeIgnored(ctx context.Context, arg sqlcgen.SetNodeIgnoredParams) (int64, error) {
	if f.ignoreFn == nil {
		return 1, nil
	}
	return f.ignoreFn(ctx, arg)
}

func fptr(v float64) *float64 { return &v }

func TestSource_FetchSnapshotUsesWindowCutoff(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	var linkSince, relaySince time.Time
	battery := int32(77)

	q := &fakeQueries{
		nodesFn: func(ctx context.Context) ([]sqlcgen.MapNode, error) {
			return []sqlcgen.MapNode{
				{NodeID: "!r", Latitude: fptr(1), Longitude: fptr(1), BatteryLevel: &battery},
				{NodeID: "!a", Latitude: fptr(1.01), Longitude: fptr(1)},
				{NodeID: "!b", Latitude: fptr(1), Longitude: fptr(1.01)},
			}, nil
		},
		linksFn: func(ctx context.Context, since time.Time) ([]sqlcgen.TopologyLink, error) {
			linkSince = since
			return []sqlcgen.TopologyLink{{SourceNodeID: "!r", NeighborNodeID: "!a", TotalPackets: 21, AvgSNR: fptr(4)}}, nil
		},
		relaysFn: func(ctx context.Context, since time.Time) ([]sqlcgen.RelayObservation, error) {
			relaySince = since
			return []sqlcgen.RelayObservation{
				{RelayNodeID: "!r", NodeID: "!a", MinHopsAway: 1},
				{RelayNodeID: "!r", NodeID: "!b", MinHopsAway: 1},
			}, nil
		},
	}
	src := NewSource(q)
	src.now = func() time.Time { return now }

	snap, err := src.FetchSnapshot(context.Background(), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := now.Add(-6 * time.Hour)
	if !linkSince.Equal(want) || !relaySince.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s / %s", want, linkSince, relaySince)
	}
	if len(snap.Nodes) != 3 || snap.Nodes[0].Battery == nil || *snap.Nodes[0].Battery != 77 {
		t.Fatalf("unexpected nodes %+v", snap.Nodes)
	}
	if len(snap.DirectConnections) != 1 || snap.DirectConnections[0].LastHeardUTC == nil {
		t.Fatalf("unexpected connections %+v", snap.DirectConnections)
	}
	if len(snap.IndirectCoverage) != 1 || len(snap.IndirectCoverage[0].Hop2) != 2 {
		t.Fatalf("unexpected coverage %+v", snap.IndirectCoverage)
	}
}

func TestSource_FetchSnapshotAddsTracerouteHops(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	var got sqlcgen.ListTraceroutesParams

	q := &fakeQueries{
		nodesFn: func(ctx context.Context) ([]sqlcgen.MapNode, error) {
			return []sqlcgen.MapNode{
				{NodeID: "!a", Latitude: fptr(1), Longitude: fptr(1)},
				{NodeID: "!b", Latitude: fptr(1.01), Longitude: fptr(1)},
			}, nil
		},
		tracesFn: func(ctx context.Context, arg sqlcgen.ListTraceroutesParams) ([]sqlcgen.Traceroute, error) {
			got = arg
			return []sqlcgen.Traceroute{
				{RouteJSON: []byte(`["!a","!b"]`), SnrData: []byte(`[4.25]`), ReceivedAtUTC: now.Add(-time.Minute)},
				{RouteJSON: []byte(`{broken`), ReceivedAtUTC: now},
			}, nil
		},
	}
	src := NewSource(q)
	src.now = func() time.Time { return now }

	snap, err := src.FetchSnapshot(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Since.Equal(now.Add(-2*time.Hour)) || got.Limit != mesh.TracerouteLimit {
		t.Fatalf("unexpected traceroute params %+v", got)
	}
	if len(snap.DirectConnections) != 1 {
		t.Fatalf("expected one traceroute hop, got %+v", snap.DirectConnections)
	}
	c := snap.DirectConnections[0]
	if c.ID() != "!a->!b" || c.Source != mesh.SourceTraceroute || c.SNR == nil || *c.SNR != 4.25 {
		t.Fatalf("unexpected traceroute connection %+v", c)
	}
}

func TestSource_FetchSnapshotWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	src := NewSource(&fakeQueries{
		linksFn: func(ctx context.Context, since time.Time) ([]sqlcgen.TopologyLink, error) {
			return nil, boom
		},
	})
	if _, err := src.FetchSnapshot(context.Background(), 24); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSource_SetNodeIgnored(t *testing.T) {
	var got sqlcgen.SetNodeIgnoredParams
	src := NewSource(&fakeQueries{
		ignoreFn: func(ctx context.Context, arg sqlcgen.SetNodeIgnoredParams) (int64, error) {
			got = arg
			if arg.NodeID == "!missing" {
				return 0, nil
			}
			return 1, nil
		},
	})

	if err := src.SetNodeIgnored(context.Background(), "!a", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NodeID != "!a" || !got.Ignored {
		t.Fatalf("unexpected params %+v", got)
	}
	if err := src.SetNodeIgnored(context.Background(), "!missing", true); !errors.Is(err, mesh.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}
