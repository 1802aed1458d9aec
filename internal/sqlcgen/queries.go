package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const listMapNodes = `-- name: ListMapNodes :many
SELECT n.node_id,
       n.short_name,
       n.long_name,
       n.latitude,
       n.longitude,
       n.altitude,
       n.battery_level,
       n.last_seen_utc,
       n.hardware_model,
       COALESCE(n.is_ignored, false) AS is_ignored,
       COALESCE(n.is_airplane, false) AS is_airplane
FROM nodes n
ORDER BY n.node_id ASC
`

func (q *Queries) ListMapNodes(ctx context.Context) ([]MapNode, error) {
	rows, err := q.db.Query(ctx, listMapNodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MapNode
	for rows.Next() {
		var i MapNode
		if err := rows.Scan(
			&i.NodeID,
			&i.ShortName,
			&i.LongName,
			&i.Latitude,
			&i.Longitude,
			&i.Altitude,
			&i.BatteryLevel,
			&i.LastSeenUTC,
			&i.HardwareModel,
			&i.IsIgnored,
			&i.IsAirplane,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTopologyLinks = `-- name: ListTopologyLinks :many
SELECT t.source_node_id,
       t.neighbor_node_id,
       COALESCE(t.total_packets, 0)::int AS total_packets,
       t.avg_snr,
       t.avg_rssi,
       t.last_heard_utc
FROM network_topology t
WHERE t.last_heard_utc >= $1
ORDER BY t.source_node_id ASC, t.neighbor_node_id ASC
`

func (q *Queries) ListTopologyLinks(ctx context.Context, since time.Time) ([]TopologyLink, error) {
	rows, err := q.db.Query(ctx, listTopologyLinks, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TopologyLink
	for rows.Next() {
		var i TopologyLink
		if err := rows.Scan(
			&i.SourceNodeID,
			&i.NeighborNodeID,
			&i.TotalPackets,
			&i.AvgSNR,
			&i.AvgRSSI,
			&i.LastHeardUTC,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRelayObservations = `-- name: ListRelayObservations :many
SELECT p.relay_node_id,
       p.node_id,
       MIN(p.hops_away)::int AS min_hops_away
FROM packet_history p
WHERE p.received_at_utc >= $1
  AND p.relay_node_id IS NOT NULL
  AND p.hops_away IS NOT NULL
  AND p.hops_away > 0
  AND COALESCE(p.via_mqtt, false) = false
GROUP BY p.relay_node_id, p.node_id
ORDER BY p.relay_node_id ASC, p.node_id ASC
`

func (q *Queries) ListRelayObservations(ctx context.Context, since time.Time) ([]RelayObservation, error) {
	rows, err := q.db.Query(ctx, listRelayObservations, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RelayObservation
	for rows.Next() {
		var i RelayObservation
		if err := rows.Scan(&i.RelayNodeID, &i.NodeID, &i.MinHopsAway); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTraceroutes = `-- name: ListTraceroutes :many
SELECT t.route_json,
       t.snr_data,
       t.received_at_utc
FROM traceroutes t
WHERE t.received_at_utc >= $1
ORDER BY t.received_at_utc DESC, t.id DESC
LIMIT $2
`

type ListTraceroutesParams struct {
	Since time.Time
	Limit int32
}

func (q *Queries) ListTraceroutes(ctx context.Context, arg ListTraceroutesParams) ([]Traceroute, error) {
	rows, err := q.db.Query(ctx, listTraceroutes, arg.Since, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Traceroute
	for rows.Next() {
		var i Traceroute
		if err := rows.Scan(&i.RouteJSON, &i.SnrData, &i.ReceivedAtUTC); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setNodeIgnored = `-- name: SetNodeIgnored :execrows
UPDATE nodes
SET is_ignored = $2,
    updated_at = now()
WHERE node_id = $1
`

type SetNodeIgnoredParams struct {
	NodeID  string
	Ignored bool
}

func (q *Queries) SetNodeIgnored(ctx context.Context, arg SetNodeIgnoredParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setNodeIgnored, arg.NodeID, arg.Ignored)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
