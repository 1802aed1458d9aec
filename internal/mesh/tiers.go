package mesh

// Tier is an indirect coverage hop tier.
type Tier string

const (
	TierHop2     Tier = "hop_2"
	TierHop3     Tier = "hop_3"
	TierHop4Plus Tier = "hop_4_plus"
)

// Tiers lists every tier in processing order. A node listed under several
// tiers of one relay belongs to the first one here.
var Tiers = []Tier{TierHop2, TierHop3, TierHop4Plus}

func (t Tier) Valid() bool {
	switch t {
	case TierHop2, TierHop3, TierHop4Plus:
		return true
	default:
		return false
	}
}

// TierForHopsAway maps the hops_away value of a packet that reached us through
// a relay to its coverage tier: one relay in between is two hops from the
// local node.
func TierForHopsAway(hopsAway int) (Tier, bool) {
	switch {
	case hopsAway <= 0:
		return "", false
	case hopsAway == 1:
		return TierHop2, true
	case hopsAway == 2:
		return TierHop3, true
	default:
		return TierHop4Plus, true
	}
}

// IndirectCoverageRecord lists the nodes a relay is known to carry traffic for,
// grouped by hop tier.
type IndirectCoverageRecord struct {
	RelayNodeID string   `json:"relayNodeId"`
	Hop2        []string `json:"hop_2,omitempty"`
	Hop3        []string `json:"hop_3,omitempty"`
	Hop4Plus    []string `json:"hop_4_plus,omitempty"`
	// SendingNodeIDs is the pre-tier flat member list some backends still send.
	SendingNodeIDs []string `json:"sendingNodeIds,omitempty"`
}

func (r IndirectCoverageRecord) Members(t Tier) []string {
	switch t {
	case TierHop2:
		return r.Hop2
	case TierHop3:
		return r.Hop3
	case TierHop4Plus:
		return r.Hop4Plus
	default:
		return nil
	}
}

func (r *IndirectCoverageRecord) setMembers(t Tier, ids []string) {
	switch t {
	case TierHop2:
		r.Hop2 = ids
	case TierHop3:
		r.Hop3 = ids
	case TierHop4Plus:
		r.Hop4Plus = ids
	}
}

func (r IndirectCoverageRecord) hasTieredMembers() bool {
	return len(r.Hop2) > 0 || len(r.Hop3) > 0 || len(r.Hop4Plus) > 0
}

// TierViolation records a node id listed under more than one tier of the same
// relay. The node is kept under FirstTier.
type TierViolation struct {
	RelayNodeID string `json:"relay_node_id"`
	NodeID      string `json:"node_id"`
	FirstTier   Tier   `json:"first_tier"`
	DroppedFrom Tier   `json:"dropped_from"`
}

// Normalize folds the legacy flat member list into hop_2 when the record has no
// tiered lists (it is ignored otherwise), removes duplicate ids within a tier
// and enforces that each id appears under one tier only.
func (r IndirectCoverageRecord) Normalize() (IndirectCoverageRecord, []TierViolation) {
	out := IndirectCoverageRecord{RelayNodeID: r.RelayNodeID}
	src := r
	if !r.hasTieredMembers() && len(r.SendingNodeIDs) > 0 {
		src.Hop2 = r.SendingNodeIDs
	}

	var violations []TierViolation
	firstTier := make(map[string]Tier)
	for _, tier := range Tiers {
		members := src.Members(tier)
		if len(members) == 0 {
			continue
		}
		kept := make([]string, 0, len(members))
		for _, id := range members {
			if id == "" || id == r.RelayNodeID {
				continue
			}
			if prev, seen := firstTier[id]; seen {
				if prev != tier {
					violations = append(violations, TierViolation{
						RelayNodeID: r.RelayNodeID,
						NodeID:      id,
						FirstTier:   prev,
						DroppedFrom: tier,
					})
				}
				continue
			}
			firstTier[id] = tier
			kept = append(kept, id)
		}
		if len(kept) > 0 {
			out.setMembers(tier, kept)
		}
	}
	return out, violations
}

// mergeByRelay folds records that share a relay into one, in first-seen relay
// order. Each record's legacy flat list is resolved before merging, so a flat
// list only lands in hop_2 when its own record has no tiered lists.
func mergeByRelay(recs []IndirectCoverageRecord) []IndirectCoverageRecord {
	out := make([]IndirectCoverageRecord, 0, len(recs))
	index := make(map[string]int, len(recs))
	for _, r := range recs {
		if !r.hasTieredMembers() && len(r.SendingNodeIDs) > 0 {
			r.Hop2 = r.SendingNodeIDs
		}
		r.SendingNodeIDs = nil

		i, ok := index[r.RelayNodeID]
		if !ok {
			index[r.RelayNodeID] = len(out)
			out = append(out, IndirectCoverageRecord{
				RelayNodeID: r.RelayNodeID,
				Hop2:        append([]string(nil), r.Hop2...),
				Hop3:        append([]string(nil), r.Hop3...),
				Hop4Plus:    append([]string(nil), r.Hop4Plus...),
			})
			continue
		}
		for _, tier := range Tiers {
			out[i].setMembers(tier, append(out[i].Members(tier), r.Members(tier)...))
		}
	}
	return out
}
