package engine

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// AxisSpan is the length of the reference coordinate axis the sweep covers
const AxisSpan = 2000.0

const (
	DefaultCycleDuration = 10 * time.Second
	DefaultTolerance     = 3.0
	DefaultHoldDuration  = 2500 * time.Millisecond
)

// HoldPolicy selects the instant a reveal's hold window is measured from
type HoldPolicy uint8

const (
	// HoldFromFirstContact measures hold from the first hit of the streak
	HoldFromFirstContact HoldPolicy = iota
	// HoldFromLastHit measures hold from the most recent frame the location was hit
	HoldFromLastHit
)

func (p HoldPolicy) String() string {
	switch p {
	case HoldFromLastHit:
		return "last_hit"
	default:
		return "first_contact"
	}
}

// Location is a point registered with the scan, positioned on the sweep axis
type Location struct {
	ID       string
	Position float64 // 0..AxisSpan, not validated
}

// Config holds scan timing parameters
type Config struct {
	CycleDuration time.Duration
	Tolerance     float64 // half-width of the hit window in percentage points
	HoldDuration  time.Duration

	// SweptDetection also counts locations the sweep crossed since the previous
	// frame, so a slow frame rate cannot skip over a narrow window
	SweptDetection bool
	HoldPolicy     HoldPolicy
}

// DefaultConfig returns the stock 10s / 3% / 2.5s scan
func DefaultConfig() Config {
	return Config{
		CycleDuration: DefaultCycleDuration,
		Tolerance:     DefaultTolerance,
		HoldDuration:  DefaultHoldDuration,
	}
}

// revealRecord tracks one revealed location
type revealRecord struct {
	at      time.Time // first contact of the current streak, never overwritten
	lastHit time.Time
}

// RadarScan sweeps a line across the axis and keeps the set of locations
// currently revealed. It is the only writer of its state; readers get
// immutable snapshots.
type RadarScan struct {
	mu sync.Mutex

	cfg       Config
	locations []Location
	percents  []float64

	started    bool
	cycleStart time.Time
	lastSweep  float64
	frame      uint64
	version    uint64

	revealed map[string]revealRecord
	current  RevealSet

	// Scratch hit set reused across frames
	hits map[string]struct{}

	snapshot atomic.Pointer[Snapshot]

	listenerMu sync.RWMutex
	listeners  map[uint64]func(Snapshot)
	nextID     uint64
}

// NewRadarScan creates an engine over a static location list.
// The slice is copied; later changes by the caller are not observed.
func NewRadarScan(locations []Location, cfg Config) *RadarScan {
	locs := make([]Location, len(locations))
	copy(locs, locations)

	percents := make([]float64, len(locs))
	for i, loc := range locs {
		percents[i] = LocationPercent(loc.Position)
	}

	r := &RadarScan{
		cfg:       cfg,
		locations: locs,
		percents:  percents,
		revealed:  make(map[string]revealRecord),
		current:   RevealSet{},
		hits:      make(map[string]struct{}, len(locs)),
		listeners: make(map[uint64]func(Snapshot)),
	}
	r.snapshot.Store(&Snapshot{Revealed: r.current})
	return r
}

// Config returns the timing parameters the engine was built with
func (r *RadarScan) Config() Config {
	return r.cfg
}

// Locations returns a copy of the registered locations
func (r *RadarScan) Locations() []Location {
	out := make([]Location, len(r.locations))
	copy(out, r.locations)
	return out
}

// Snapshot returns the state published by the last Tick
func (r *RadarScan) Snapshot() Snapshot {
	return *r.snapshot.Load()
}

// Subscribe registers fn to receive every published snapshot.
// Callbacks run on the ticking goroutine, outside the engine lock.
func (r *RadarScan) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	r.listenerMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.listenerMu.Lock()
			delete(r.listeners, id)
			r.listenerMu.Unlock()
		})
	}
}

// Tick advances the scan to now, publishes and returns the new snapshot
func (r *RadarScan) Tick(now time.Time) Snapshot {
	r.mu.Lock()
	snap := r.advance(now)
	r.snapshot.Store(&snap)
	r.mu.Unlock()

	r.notify(snap)
	return snap
}

// advance runs one frame of the update; caller holds r.mu
func (r *RadarScan) advance(now time.Time) Snapshot {
	if !r.started {
		r.started = true
		r.cycleStart = now
	}

	sweep := SweepPosition(now.Sub(r.cycleStart), r.cfg.CycleDuration)
	prev := r.lastSweep
	swept := r.cfg.SweptDetection && r.frame > 0
	r.lastSweep = sweep
	r.frame++

	clear(r.hits)
	for i, loc := range r.locations {
		p := r.percents[i]
		if math.Abs(sweep-p) < r.cfg.Tolerance || (swept && crossed(prev, sweep, p)) {
			r.hits[loc.ID] = struct{}{}
		}
	}

	changed := false

	// Add before prune: a fresh hit is always present for this frame
	for id := range r.hits {
		rec, ok := r.revealed[id]
		if !ok {
			r.revealed[id] = revealRecord{at: now, lastHit: now}
			changed = true
			continue
		}
		rec.lastHit = now
		r.revealed[id] = rec
	}

	for id, rec := range r.revealed {
		if _, hit := r.hits[id]; hit {
			continue
		}
		anchor := rec.at
		if r.cfg.HoldPolicy == HoldFromLastHit {
			anchor = rec.lastHit
		}
		if now.Sub(anchor) > r.cfg.HoldDuration {
			delete(r.revealed, id)
			changed = true
		}
	}

	if changed {
		r.version++
		r.current = newRevealSet(r.revealed)
	}

	return Snapshot{
		Sweep:    sweep,
		Revealed: r.current,
		Version:  r.version,
		Changed:  changed,
		Frame:    r.frame,
		At:       now,
	}
}

// RevealedAt returns the first-contact time of a revealed location
func (r *RadarScan) RevealedAt(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.revealed[id]
	return rec.at, ok
}

func (r *RadarScan) notify(snap Snapshot) {
	r.listenerMu.RLock()
	if len(r.listeners) == 0 {
		r.listenerMu.RUnlock()
		return
	}
	ids := make([]uint64, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.listeners[id])
	}
	r.listenerMu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// SweepPosition maps elapsed scan time to a 0..100 sweep percentage.
// A non-positive cycle pins the sweep at 0.
func SweepPosition(elapsed, cycle time.Duration) float64 {
	if cycle <= 0 {
		return 0
	}
	e := elapsed % cycle
	if e < 0 {
		e += cycle
	}
	return float64(e) / float64(cycle) * 100
}

// LocationPercent maps an axis coordinate to the sweep's percentage scale
func LocationPercent(position float64) float64 {
	return position / AxisSpan * 100
}

// crossed reports whether p lies on the arc the sweep travelled from prev to
// cur, taking the wrap at 100 into account
func crossed(prev, cur, p float64) bool {
	if cur >= prev {
		return p >= prev && p <= cur
	}
	return p >= prev || p <= cur
}
