// Package selection tracks the single selected map entity and which layers
// are shown. The two are orthogonal: neither ever changes the other.
package selection

import (
	"meshmap/core-go/internal/coverage"
	"meshmap/core-go/internal/mesh"
)

type Kind string

const (
	KindNode  Kind = "node"
	KindShape Kind = "shape"
)

func (k Kind) Valid() bool {
	return k == KindNode || k == KindShape
}

// Snapshot is an immutable copy of the selection. The zero value is Idle.
type Snapshot struct {
	Kind Kind   `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
}

func (s Snapshot) Idle() bool {
	return s.ID == ""
}

// State is the selection state machine: Idle or Selected(id). Selecting a new
// entity replaces the previous selection.
type State struct {
	current Snapshot
}

func (s *State) SelectNode(id string) {
	s.selectEntity(KindNode, id)
}

func (s *State) SelectShape(id string) {
	s.selectEntity(KindShape, id)
}

func (s *State) selectEntity(kind Kind, id string) {
	if id == "" {
		s.Clear()
		return
	}
	s.current = Snapshot{Kind: kind, ID: id}
}

// Clear returns to Idle.
func (s *State) Clear() {
	s.current = Snapshot{}
}

// Selected returns the selected entity, if any.
func (s *State) Selected() (id string, kind Kind, ok bool) {
	if s.current.Idle() {
		return "", "", false
	}
	return s.current.ID, s.current.Kind, true
}

func (s *State) Snapshot() Snapshot {
	return s.current
}

// Reconcile clears a selection whose entity no longer exists. It reports
// whether the selection was dropped.
func (s *State) Reconcile(exists func(kind Kind, id string) bool) bool {
	if s.current.Idle() || exists(s.current.Kind, s.current.ID) {
		return false
	}
	s.Clear()
	return true
}

// RelatesToLine reports whether the selection is one of the line's endpoints.
func (s Snapshot) RelatesToLine(c mesh.DirectConnection) bool {
	if s.Idle() {
		return false
	}
	return c.Touches(s.ID)
}

// RelatesToShape reports whether the selection is the shape itself, its relay
// or one of its members.
func (s Snapshot) RelatesToShape(shape coverage.Shape) bool {
	if s.Idle() {
		return false
	}
	if s.ID == shape.ID || s.ID == shape.RelayNodeID {
		return true
	}
	for _, id := range shape.MemberIDs {
		if id == s.ID {
			return true
		}
	}
	return false
}

// RelatesToNode reports whether the selection is the node itself.
func (s Snapshot) RelatesToNode(nodeID string) bool {
	return !s.Idle() && s.ID == nodeID
}

// Relations is the per-entity side table of "related to the selection" flags,
// keyed by line id and shape id.
type Relations struct {
	Lines  map[string]bool
	Shapes map[string]bool
}

// Relate computes the relation table for every line and shape.
func (s Snapshot) Relate(lines []mesh.DirectConnection, shapes []coverage.Shape) Relations {
	r := Relations{
		Lines:  make(map[string]bool, len(lines)),
		Shapes: make(map[string]bool, len(shapes)),
	}
	for _, l := range lines {
		r.Lines[l.ID()] = s.RelatesToLine(l)
	}
	for _, sh := range shapes {
		r.Shapes[sh.ID] = s.RelatesToShape(sh)
	}
	return r
}
