// Package session owns the derived map state for one viewer: it applies
// snapshots and routes interaction callbacks to the selection state machine.
package session

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"meshmap/core-go/internal/coverage"
	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/metrics"
	"meshmap/core-go/internal/render"
	"meshmap/core-go/internal/selection"
)

const (
	MinWindowHours     = 1
	MaxWindowHours     = 720
	DefaultWindowHours = 24
)

var (
	ErrInvalidWindow = errors.New("time window must be between 1 and 720 hours")
	ErrUnknownEntity = errors.New("unknown map entity")
	ErrInvalidKind   = errors.New("selection kind must be node or shape")
)

type Options struct {
	Coverage    coverage.Options
	Style       render.Style
	WindowHours float64
}

// Session is safe for concurrent use. ApplySnapshot calls are serialized so
// two snapshots are never derived at the same time.
type Session struct {
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	opts        Options
	windowHours float64
	sel         selection.State
	vis         selection.LayerVisibility
	model       render.Model
	ready       bool
	trigger     func()
}

func New(log zerolog.Logger, opts Options, m *metrics.Metrics) *Session {
	if opts.Style == (render.Style{}) {
		opts.Style = render.DefaultStyle()
	}
	wh := opts.WindowHours
	if !validWindow(wh) {
		wh = DefaultWindowHours
	}
	return &Session{
		log:         log.With().Str("component", "session").Logger(),
		metrics:     m,
		opts:        opts,
		windowHours: wh,
		vis:         selection.DefaultLayerVisibility(),
	}
}

// validWindow reports whether hours is a finite value in [Min, Max]. NaN
// compares false against both bounds, so it is checked first.
func validWindow(hours float64) bool {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return false
	}
	return hours >= MinWindowHours && hours <= MaxWindowHours
}

// SetTrigger installs the hook called when a new snapshot should be fetched.
func (s *Session) SetTrigger(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = fn
}

// ApplySnapshot derives a new model from snap, replacing all derived state.
// The selection survives unless its entity is gone from the new model.
func (s *Session) ApplySnapshot(snap mesh.Snapshot) render.Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.WindowHours == 0 {
		snap.WindowHours = s.windowHours
	}

	f := mesh.Filter(snap)
	cov := coverage.Build(f, s.opts.Coverage)
	for _, v := range cov.Violations {
		s.log.Warn().
			Str("relay_node_id", v.RelayNodeID).
			Str("node_id", v.NodeID).
			Str("first_tier", string(v.FirstTier)).
			Str("dropped_from", string(v.DroppedFrom)).
			Msg("node listed under more than one hop tier")
	}

	model := render.Build(snap, f, cov, s.sel.Snapshot(), s.vis, s.opts.Style)
	if s.sel.Reconcile(model.Exists) {
		s.log.Debug().Msg("selected entity vanished; selection cleared")
		model = render.ApplySelection(model, s.sel.Snapshot(), s.vis)
	}

	s.model = model
	s.ready = true
	s.recordEntities(model)

	s.log.Debug().
		Str("revision", model.Revision).
		Int("markers", len(model.Markers)).
		Int("lines", len(model.Lines)).
		Int("shapes", len(model.Shapes)).
		Int("circles", len(model.Circles)).
		Msg("snapshot applied")
	return model
}

// Model returns the last good model and whether any snapshot was applied.
func (s *Session) Model() (render.Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model, s.ready
}

func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Session) WindowHours() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowHours
}

// OnNodeClicked selects a node. Unknown ids leave the state unchanged.
func (s *Session) OnNodeClicked(id string) (render.Model, error) {
	return s.selectEntity(selection.KindNode, id)
}

// OnShapeClicked selects a coverage shape. Unknown ids leave the state unchanged.
func (s *Session) OnShapeClicked(id string) (render.Model, error) {
	return s.selectEntity(selection.KindShape, id)
}

// Select dispatches on kind ("node" or "shape").
func (s *Session) Select(kind selection.Kind, id string) (render.Model, error) {
	if !kind.Valid() {
		return render.Model{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.selectEntity(kind, id)
}

func (s *Session) selectEntity(kind selection.Kind, id string) (render.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || !s.model.Exists(kind, id) {
		return s.model, fmt.Errorf("%w: %s %q", ErrUnknownEntity, kind, id)
	}
	switch kind {
	case selection.KindShape:
		s.sel.SelectShape(id)
	default:
		s.sel.SelectNode(id)
	}
	s.model = render.ApplySelection(s.model, s.sel.Snapshot(), s.vis)
	return s.model, nil
}

// OnBackgroundClicked clears the selection.
func (s *Session) OnBackgroundClicked() render.Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sel.Clear()
	if s.ready {
		s.model = render.ApplySelection(s.model, s.sel.Snapshot(), s.vis)
	}
	return s.model
}

// OnLayerToggled shows or hides one layer. The selection is untouched.
func (s *Session) OnLayerToggled(key string, visible bool) (render.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vis.Set(key, visible); err != nil {
		return s.model, err
	}
	s.log.Debug().
		Str("layer", key).
		Bool("visible", visible).
		Strs("hidden_layers", s.vis.Hidden()).
		Msg("layer toggled")
	if s.ready {
		s.model = render.ApplySelection(s.model, s.sel.Snapshot(), s.vis)
	}
	return s.model, nil
}

// LayerVisibility returns a copy of the current layer visibility.
func (s *Session) LayerVisibility() selection.LayerVisibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vis.Clone()
}

// OnTimeWindowChanged stores a new window and asks for a fresh snapshot. The
// current model stays in place until that snapshot arrives.
func (s *Session) OnTimeWindowChanged(hours float64) error {
	if !validWindow(hours) {
		return fmt.Errorf("%w: got %v", ErrInvalidWindow, hours)
	}

	s.mu.Lock()
	changed := s.windowHours != hours
	s.windowHours = hours
	trigger := s.trigger
	s.mu.Unlock()

	if changed {
		s.log.Info().Float64("window_hours", hours).Msg("time window changed")
	}
	if trigger != nil {
		trigger()
	}
	return nil
}

func (s *Session) recordEntities(m render.Model) {
	if s.metrics == nil {
		return
	}
	s.metrics.SetRenderEntities("markers", len(m.Markers))
	s.metrics.SetRenderEntities("lines", len(m.Lines))
	s.metrics.SetRenderEntities("shapes", len(m.Shapes))
	s.metrics.SetRenderEntities("circles", len(m.Circles))
}
