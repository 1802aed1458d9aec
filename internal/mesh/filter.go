package mesh

import "sort"

// Filtered is the view of a snapshot every derivation step works from.
//
// Ignored nodes are gone entirely. Airplane nodes stay in Nodes but are never
// an endpoint of a kept connection, a relay of a kept coverage record or a
// member of a coverage tier.
type Filtered struct {
	Nodes       []Node
	Connections []DirectConnection
	Coverage    []IndirectCoverageRecord
	Ignored     map[string]struct{}
	Airplanes   map[string]struct{}
	// Violations lists tier invariant breaches found while normalizing coverage.
	Violations []TierViolation

	byID map[string]int
}

// Filter builds the filtered view of s. It never fails: records that reference
// unknown relays and links touching excluded nodes are dropped. Records for the
// same relay are merged first so each relay yields one shape per tier.
func Filter(s Snapshot) Filtered {
	f := Filtered{
		Nodes:     make([]Node, 0, len(s.Nodes)),
		Ignored:   make(map[string]struct{}),
		Airplanes: make(map[string]struct{}),
		byID:      make(map[string]int, len(s.Nodes)),
	}

	seen := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}

		if n.IsIgnored {
			f.Ignored[n.ID] = struct{}{}
			continue
		}
		if n.IsAirplane {
			f.Airplanes[n.ID] = struct{}{}
		}
		f.byID[n.ID] = len(f.Nodes)
		f.Nodes = append(f.Nodes, n)
	}

	f.Connections = make([]DirectConnection, 0, len(s.DirectConnections))
	for _, c := range s.DirectConnections {
		if f.excluded(c.From) || f.excluded(c.To) {
			continue
		}
		f.Connections = append(f.Connections, c)
	}

	merged := mergeByRelay(s.IndirectCoverage)
	f.Coverage = make([]IndirectCoverageRecord, 0, len(merged))
	for _, rec := range merged {
		if f.excluded(rec.RelayNodeID) {
			continue
		}
		if _, ok := f.byID[rec.RelayNodeID]; !ok {
			continue
		}
		norm, violations := rec.Normalize()
		f.Violations = append(f.Violations, violations...)

		for _, tier := range Tiers {
			norm.setMembers(tier, f.dropExcluded(norm.Members(tier)))
		}
		f.Coverage = append(f.Coverage, norm)
	}

	return f
}

// Node resolves id among the kept nodes.
func (f Filtered) Node(id string) (Node, bool) {
	i, ok := f.byID[id]
	if !ok {
		return Node{}, false
	}
	return f.Nodes[i], true
}

func (f Filtered) IsAirplane(id string) bool {
	_, ok := f.Airplanes[id]
	return ok
}

func (f Filtered) IsIgnored(id string) bool {
	_, ok := f.Ignored[id]
	return ok
}

// Snapshot converts the filtered view back into a snapshot, so the filter can
// be re-applied to its own output.
func (f Filtered) Snapshot() Snapshot {
	return Snapshot{
		Nodes:             append([]Node(nil), f.Nodes...),
		DirectConnections: append([]DirectConnection(nil), f.Connections...),
		IndirectCoverage:  append([]IndirectCoverageRecord(nil), f.Coverage...),
	}
}

// IgnoredIDs returns the ignored node ids sorted.
func (f Filtered) IgnoredIDs() []string {
	return sortedKeys(f.Ignored)
}

// AirplaneIDs returns the airplane node ids sorted.
func (f Filtered) AirplaneIDs() []string {
	return sortedKeys(f.Airplanes)
}

func (f Filtered) excluded(id string) bool {
	return f.IsIgnored(id) || f.IsAirplane(id)
}

func (f Filtered) dropExcluded(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if f.excluded(id) {
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
