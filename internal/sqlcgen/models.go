package sqlcgen

import "time"

type MapNode struct {
	NodeID        string
	ShortName     *string
	LongName      *string
	Latitude      *float64
	Longitude     *float64
	Altitude      *float64
	BatteryLevel  *int32
	LastSeenUTC   *time.Time
	HardwareModel *string
	IsIgnored     bool
	IsAirplane    bool
}

type TopologyLink struct {
	SourceNodeID   string
	NeighborNodeID string
	TotalPackets   int32
	AvgSNR         *float64
	AvgRSSI        *float64
	LastHeardUTC   time.Time
}

type RelayObservation struct {
	RelayNodeID string
	NodeID      string
	MinHopsAway int32
}

type Traceroute struct {
	RouteJSON     []byte
	SnrData       []byte
	ReceivedAtUTC time.Time
}
