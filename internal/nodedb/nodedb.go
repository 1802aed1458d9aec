// Package nodedb reads snapshots straight from the SQLite database written by
// the node-tracking plugin.
package nodedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"meshmap/core-go/internal/mesh"
)

var ErrReadOnly = errors.New("node database opened read-only")

// timeLayout is how the tracker writes timestamps: naive UTC ISO-8601.
const timeLayout = "2006-01-02T15:04:05.999999"

type Store struct {
	db       *sql.DB
	readOnly bool
	now      func() time.Time
}

type Options struct {
	ReadOnly bool
	// CreateSchema creates the tracker tables when they are missing. Used for
	// fresh databases and tests.
	CreateSchema bool
}

func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	dsn := path
	if opts.ReadOnly {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if opts.CreateSchema && !opts.ReadOnly {
		if err := createSchema(ctx, db); err != nil {
			_ = db.Close()

			return nil, err
		}
	}

	return &Store{db: db, readOnly: opts.ReadOnly, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func createSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			node_id TEXT PRIMARY KEY,
			node_num INTEGER,
			short_name TEXT,
			long_name TEXT,
			latitude REAL,
			longitude REAL,
			altitude REAL,
			last_seen_utc TEXT,
			first_seen_utc TEXT,
			total_packets_received INTEGER DEFAULT 0,
			hardware_model TEXT,
			battery_level INTEGER,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			is_ignored BOOLEAN DEFAULT 0,
			is_airplane BOOLEAN DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS packet_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id TEXT NOT NULL,
			received_at_utc TEXT NOT NULL,
			packet_type TEXT,
			hops_away INTEGER,
			via_mqtt BOOLEAN DEFAULT 0,
			relay_node_id TEXT,
			rx_snr REAL,
			rx_rssi INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS network_topology (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_node_id TEXT NOT NULL,
			neighbor_node_id TEXT NOT NULL,
			first_heard_utc TEXT NOT NULL,
			last_heard_utc TEXT NOT NULL,
			total_packets INTEGER DEFAULT 0,
			avg_snr REAL,
			avg_rssi REAL,
			is_active BOOLEAN DEFAULT 1,
			UNIQUE(source_node_id, neighbor_node_id)
		)`,
		`CREATE TABLE IF NOT EXISTS traceroutes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_node_id TEXT NOT NULL,
			to_node_id TEXT,
			route_json TEXT NOT NULL,
			hop_count INTEGER NOT NULL,
			received_at_utc TEXT NOT NULL,
			snr_data TEXT,
			packet_id INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_packet_history_relay ON packet_history(relay_node_id, received_at_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_traceroute_time ON traceroutes(received_at_utc)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// FetchSnapshot reads every node plus the links, traceroutes and relay
// observations heard within the last windowHours.
func (s *Store) FetchSnapshot(ctx context.Context, windowHours float64) (mesh.Snapshot, error) {
	now := s.now().UTC()
	cutoff := formatTime(now.Add(-time.Duration(windowHours * float64(time.Hour))))

	nodes, err := s.listNodes(ctx)
	if err != nil {
		return mesh.Snapshot{}, err
	}
	links, err := s.listLinks(ctx, cutoff)
	if err != nil {
		return mesh.Snapshot{}, err
	}
	traces, err := s.listTraceroutes(ctx, cutoff)
	if err != nil {
		return mesh.Snapshot{}, err
	}
	relays, err := s.listRelays(ctx, cutoff)
	if err != nil {
		return mesh.Snapshot{}, err
	}
	return mesh.Assemble(nodes, links, traces, relays, windowHours, now), nil
}

func (s *Store) listNodes(ctx context.Context) ([]mesh.NodeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, short_name, long_name, latitude, longitude, altitude,
		       battery_level, last_seen_utc, hardware_model,
		       COALESCE(is_ignored, 0), COALESCE(is_airplane, 0)
		FROM nodes
		ORDER BY node_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []mesh.NodeRow
	for rows.Next() {
		var (
			r                     mesh.NodeRow
			shortName, longName   sql.NullString
			lat, lon, alt         sql.NullFloat64
			battery               sql.NullInt64
			lastSeen, hwModel     sql.NullString
			isIgnored, isAirplane int64
		)
		if err := rows.Scan(&r.ID, &shortName, &longName, &lat, &lon, &alt,
			&battery, &lastSeen, &hwModel, &isIgnored, &isAirplane); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		r.ShortName = nullString(shortName)
		r.LongName = nullString(longName)
		r.Latitude = nullFloat(lat)
		r.Longitude = nullFloat(lon)
		r.Altitude = nullFloat(alt)
		if battery.Valid {
			b := int(battery.Int64)
			r.Battery = &b
		}
		r.LastSeen = parseTime(lastSeen)
		r.HWModel = nullString(hwModel)
		r.IsIgnored = isIgnored != 0
		r.IsAirplane = isAirplane != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return out, nil
}

func (s *Store) listLinks(ctx context.Context, cutoff string) ([]mesh.LinkRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_node_id, neighbor_node_id, COALESCE(total_packets, 0),
		       avg_snr, avg_rssi, last_heard_utc
		FROM network_topology
		WHERE last_heard_utc >= ?
		ORDER BY source_node_id ASC, neighbor_node_id ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list topology: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []mesh.LinkRow
	for rows.Next() {
		var (
			r         mesh.LinkRow
			snr, rssi sql.NullFloat64
			lastHeard sql.NullString
		)
		if err := rows.Scan(&r.SourceID, &r.NeighborID, &r.TotalPackets, &snr, &rssi, &lastHeard); err != nil {
			return nil, fmt.Errorf("scan topology: %w", err)
		}
		r.AvgSNR = nullFloat(snr)
		r.AvgRSSI = nullFloat(rssi)
		r.LastHeard = parseTime(lastHeard)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list topology: %w", err)
	}
	return out, nil
}

// listTraceroutes returns the newest traceroutes first. Rows whose route
// cannot be decoded are skipped.
func (s *Store) listTraceroutes(ctx context.Context, cutoff string) ([]mesh.TracerouteRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT route_json, snr_data, received_at_utc
		FROM traceroutes
		WHERE received_at_utc >= ?
		ORDER BY received_at_utc DESC, id DESC
		LIMIT ?`, cutoff, mesh.TracerouteLimit)
	if err != nil {
		return nil, fmt.Errorf("list traceroutes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []mesh.TracerouteRow
	for rows.Next() {
		var (
			route      string
			snr        sql.NullString
			receivedAt sql.NullString
		)
		if err := rows.Scan(&route, &snr, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan traceroute: %w", err)
		}
		var at time.Time
		if t := parseTime(receivedAt); t != nil {
			at = *t
		}
		if r, ok := mesh.DecodeTracerouteRow([]byte(route), []byte(snr.String), at); ok {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list traceroutes: %w", err)
	}
	return out, nil
}

func (s *Store) listRelays(ctx context.Context, cutoff string) ([]mesh.RelayRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relay_node_id, node_id, MIN(hops_away)
		FROM packet_history
		WHERE received_at_utc >= ?
		  AND relay_node_id IS NOT NULL
		  AND hops_away IS NOT NULL
		  AND hops_away > 0
		  AND COALESCE(via_mqtt, 0) = 0
		GROUP BY relay_node_id, node_id
		ORDER BY relay_node_id ASC, node_id ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list relay observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []mesh.RelayRow
	for rows.Next() {
		var r mesh.RelayRow
		if err := rows.Scan(&r.RelayNodeID, &r.NodeID, &r.HopsAway); err != nil {
			return nil, fmt.Errorf("scan relay observation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list relay observations: %w", err)
	}
	return out, nil
}

func (s *Store) SetNodeIgnored(ctx context.Context, nodeID string, ignored bool) error {
	if s.readOnly {
		return ErrReadOnly
	}
	flag := 0
	if ignored {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET is_ignored = ?, updated_at = ? WHERE node_id = ?`,
		flag, formatTime(s.now().UTC()), nodeID)
	if err != nil {
		return fmt.Errorf("update node %s: %w", nodeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node %s: %w", nodeID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", mesh.ErrNodeNotFound, nodeID)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	raw := strings.TrimSpace(v.String)
	for _, layout := range []string{time.RFC3339Nano, timeLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
