// Package refresher keeps the session fed with snapshots from a Source.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/metrics"
	"meshmap/core-go/internal/render"
)

var ErrNoSource = errors.New("no snapshot source configured")

// Source is the telemetry backend. *nodedb.Store and *db.Source satisfy it.
type Source interface {
	FetchSnapshot(ctx context.Context, windowHours float64) (mesh.Snapshot, error)
	SetNodeIgnored(ctx context.Context, nodeID string, ignored bool) error
}

// Sink receives fetched snapshots. *session.Session satisfies it.
type Sink interface {
	ApplySnapshot(s mesh.Snapshot) render.Model
	WindowHours() float64
}

type Options struct {
	PollInterval time.Duration
	FetchTimeout time.Duration
	MaxBackoff   time.Duration
}

type Worker struct {
	log          zerolog.Logger
	src          Source
	sink         Sink
	pollInterval time.Duration
	fetchTimeout time.Duration
	maxBackoff   time.Duration
	metrics      *metrics.Metrics

	trigger chan struct{}

	started atomic.Uint64
	applyMu sync.Mutex
	applied uint64
}

func New(log zerolog.Logger, src Source, sink Sink, opts Options, m *metrics.Metrics) *Worker {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = 30 * time.Second
	}
	ft := opts.FetchTimeout
	if ft <= 0 {
		ft = 10 * time.Second
	}
	mb := opts.MaxBackoff
	if mb <= 0 {
		mb = 5 * time.Minute
	}
	return &Worker{
		log:          log.With().Str("component", "refresher").Logger(),
		src:          src,
		sink:         sink,
		pollInterval: pi,
		fetchTimeout: ft,
		maxBackoff:   mb,
		metrics:      m,
		trigger:      make(chan struct{}, 1),
	}
}

// Trigger asks the loop for an immediate refresh. Triggers coalesce while one
// is pending.
func (w *Worker) Trigger() {
	if w == nil {
		return
	}
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes once immediately, then on every poll tick or trigger until ctx
// is done. Consecutive failures back the timer off.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.src == nil || w.sink == nil {
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-w.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := w.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(w.pollInterval, w.maxBackoff, consecutiveFailures))
	}
}

func backoffDuration(base, ceiling time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if failures <= 0 {
		return base
	}

	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

// Refresh fetches one snapshot and hands it to the sink. A result is applied
// only if no fetch started after it has already been applied; otherwise it is
// discarded and applied is false. A fetch that completes last but started
// earlier read an older time window and older rows, so applying it would roll
// the map back behind data already shown.
func (w *Worker) Refresh(ctx context.Context) (applied bool, err error) {
	if w == nil || w.src == nil {
		return false, ErrNoSource
	}

	gen := w.started.Add(1)
	window := w.sink.WindowHours()
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
	defer cancel()

	snap, err := w.src.FetchSnapshot(fetchCtx, window)
	if err != nil {
		w.observe("error", start)
		w.log.Error().Err(err).Uint64("generation", gen).Float64("window_hours", window).Msg("snapshot fetch failed; keeping last model")
		return false, fmt.Errorf("fetch snapshot: %w", err)
	}
	if snap.WindowHours == 0 {
		snap.WindowHours = window
	}

	w.applyMu.Lock()
	defer w.applyMu.Unlock()
	if gen < w.applied {
		w.observe("stale", start)
		w.log.Debug().Uint64("generation", gen).Uint64("applied", w.applied).Msg("discarding stale snapshot")
		return false, nil
	}
	w.applied = gen
	model := w.sink.ApplySnapshot(snap)
	w.observe("ok", start)

	w.log.Info().
		Uint64("generation", gen).
		Float64("window_hours", window).
		Int("nodes", len(snap.Nodes)).
		Int("links", len(snap.DirectConnections)).
		Int("relays", len(snap.IndirectCoverage)).
		Str("revision", model.Revision).
		Dur("took", time.Since(start)).
		Msg("snapshot refreshed")
	return true, nil
}

// SetNodeIgnored forwards to the source and schedules a refresh; the local
// model is never edited directly.
func (w *Worker) SetNodeIgnored(ctx context.Context, nodeID string, ignored bool) error {
	if w == nil || w.src == nil {
		return ErrNoSource
	}
	if err := w.src.SetNodeIgnored(ctx, nodeID, ignored); err != nil {
		return fmt.Errorf("set node ignored: %w", err)
	}
	w.log.Info().Str("node_id", nodeID).Bool("ignored", ignored).Msg("node ignore flag updated")
	w.Trigger()
	return nil
}

func (w *Worker) observe(result string, start time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.IncSnapshotRefresh(result)
	w.metrics.ObserveSnapshotRefreshDuration(time.Since(start))
}
