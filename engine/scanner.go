package engine

import (
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/radar-scan/status"
)

// ScannerConfig wires a RadarScan to its frame source and clock
type ScannerConfig struct {
	Scan   *RadarScan
	Frames FrameSource

	// Clock is wrapped in a PausableClock; nil uses the system clock
	Clock TimeProvider

	// ReducedMotion is read once at Start; true disables the sweep for good
	ReducedMotion func() bool

	Status *status.Registry
}

// Scanner owns the frame loop around a RadarScan: start, teardown,
// visibility pause and the reduced-motion gate
type Scanner struct {
	scan   *RadarScan
	frames FrameSource
	clock  *PausableClock
	motion func() bool

	mu       sync.Mutex
	started  bool
	stopped  bool
	visible  bool
	scanning bool
	reduced  bool
	pending  CancelFunc

	prev RevealSet

	statFrames   *atomic.Int64
	statReveals  *atomic.Int64
	statExpiries *atomic.Int64
	statRevealed *atomic.Int64
	statSweep    *status.Float
	statVisible  *atomic.Bool
	statScanning *atomic.Bool
}

// NewScanner creates a stopped scanner; the view starts visible
func NewScanner(cfg ScannerConfig) *Scanner {
	reg := cfg.Status
	if reg == nil {
		reg = status.NewRegistry()
	}
	s := &Scanner{
		scan:         cfg.Scan,
		frames:       cfg.Frames,
		clock:        NewPausableClock(cfg.Clock),
		motion:       cfg.ReducedMotion,
		visible:      true,
		statFrames:   reg.Ints.Get(status.KeyFrames),
		statReveals:  reg.Ints.Get(status.KeyReveals),
		statExpiries: reg.Ints.Get(status.KeyExpiries),
		statRevealed: reg.Ints.Get(status.KeyRevealed),
		statSweep:    reg.Floats.Get(status.KeySweep),
		statVisible:  reg.Bools.Get(status.KeyVisible),
		statScanning: reg.Bools.Get(status.KeyScanning),
	}
	s.statVisible.Store(true)
	return s
}

// Scan returns the underlying engine
func (s *Scanner) Scan() *RadarScan {
	return s.scan
}

// Start checks the reduced-motion preference and, unless set, requests the
// first frame. Later calls are ignored.
func (s *Scanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	if s.motion != nil && s.motion() {
		s.reduced = true
		s.scanning = false
		s.statScanning.Store(false)
		return
	}
	s.scanning = true
	s.statScanning.Store(true)

	if s.visible {
		s.schedule()
	}
}

// Stop cancels the pending frame; no further tick runs afterwards
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.scanning = false
	s.statScanning.Store(false)
	s.cancelPending()
}

// SetVisible pauses the loop and scan time while false, resumes while true
func (s *Scanner) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visible == visible {
		return
	}
	s.visible = visible
	s.statVisible.Store(visible)

	if !visible {
		s.cancelPending()
		s.clock.Pause()
		return
	}
	s.clock.Resume()
	if s.active() && s.pending == nil {
		s.schedule()
	}
}

// IsScanning is false before Start, after Stop, and under reduced motion
func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// ReducedMotion reports whether Start found the reduced-motion preference set
func (s *Scanner) ReducedMotion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reduced
}

// IsVisible reports the last visibility signal
func (s *Scanner) IsVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Snapshot returns the last published scan state
func (s *Scanner) Snapshot() Snapshot {
	return s.scan.Snapshot()
}

// Subscribe forwards to the engine's subscription
func (s *Scanner) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.scan.Subscribe(fn)
}

// active reports whether frames should run; caller holds s.mu
func (s *Scanner) active() bool {
	return s.scanning && !s.stopped && s.visible
}

// schedule requests the next frame; caller holds s.mu
func (s *Scanner) schedule() {
	s.pending = s.frames.RequestFrame(s.tick)
}

// cancelPending withdraws the outstanding request; caller holds s.mu
func (s *Scanner) cancelPending() {
	if s.pending != nil {
		s.pending()
		s.pending = nil
	}
}

func (s *Scanner) tick() {
	s.mu.Lock()
	s.pending = nil
	if !s.active() {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.mu.Unlock()

	snap := s.scan.Tick(now)
	s.record(snap)

	s.mu.Lock()
	if s.active() && s.pending == nil {
		s.schedule()
	}
	s.mu.Unlock()
}

// record updates metrics; only the frame goroutine calls it
func (s *Scanner) record(snap Snapshot) {
	s.statFrames.Add(1)
	s.statSweep.Set(snap.Sweep)
	if !snap.Changed {
		return
	}
	added := len(snap.Revealed.Added(s.prev))
	removed := len(s.prev.Added(snap.Revealed))
	s.statReveals.Add(int64(added))
	s.statExpiries.Add(int64(removed))
	s.statRevealed.Store(int64(snap.Revealed.Len()))
	s.prev = snap.Revealed
}
