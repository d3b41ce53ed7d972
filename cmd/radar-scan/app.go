package main

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lixenwraith/radar-scan/audio"
	"github.com/lixenwraith/radar-scan/config"
	"github.com/lixenwraith/radar-scan/engine"
	"github.com/lixenwraith/radar-scan/server"
	"github.com/lixenwraith/radar-scan/status"
)

// envReducedMotion reports the REDUCED_MOTION environment preference
func envReducedMotion() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("REDUCED_MOTION"))) {
	case "1", "true", "yes", "reduce":
		return true
	}
	return false
}

// app owns the live scanner and rebuilds it when the config changes.
// Visibility survives a rebuild.
type app struct {
	logger *zap.Logger
	reg    *status.Registry
	frames engine.FrameSource
	clock  engine.TimeProvider
	pinger audio.Pinger
	server *server.Server

	// command-line overrides, reapplied to every reloaded config
	opts options

	mu      sync.Mutex
	cfg     *config.Config
	markers []config.Marker
	scanner *engine.Scanner
	unsub   []func()
	visible bool

	reloaded chan struct{}
}

type appDeps struct {
	Logger       *zap.Logger
	Frames       engine.FrameSource
	Clock        engine.TimeProvider // nil: system clock
	Pinger       audio.Pinger        // nil: silent
	Status       *status.Registry
	Flags        options
}

func newApp(cfg *config.Config, deps appDeps) *app {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Pinger == nil {
		deps.Pinger = audio.NopPinger{}
	}
	if deps.Status == nil {
		deps.Status = status.NewRegistry()
	}
	return &app{
		logger:       deps.Logger,
		reg:          deps.Status,
		frames:       deps.Frames,
		clock:        deps.Clock,
		pinger:       deps.Pinger,
		opts:         deps.Flags,
		cfg:          cfg,
		visible:      true,
		reloaded:     make(chan struct{}, 1),
	}
}

// enableServer creates the snapshot server; call before start
func (a *app) enableServer(cfg server.Config) *server.Server {
	a.server = server.NewServer(a.logger.Named("server"), nil, a.reg, cfg)
	return a.server
}

// start builds and starts the first scanner
func (a *app) start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buildLocked()
}

// apply swaps in a reloaded config. The old scanner stops before the new
// one starts, so its frame callbacks never overlap the new scan.
func (a *app) apply(cfg *config.Config) {
	a.mu.Lock()
	a.stopLocked()
	a.cfg = cfg
	a.buildLocked()
	a.mu.Unlock()

	select {
	case a.reloaded <- struct{}{}:
	default:
	}
}

// reload applies the command-line overrides to a freshly loaded config and
// swaps it in
func (a *app) reload(cfg *config.Config) {
	prev := a.config()
	applyFlags(cfg, a.opts)
	if cfg.FrameInterval() != prev.FrameInterval() {
		a.logger.Warn("fps change takes effect on restart", zap.Int("fps", cfg.Scan.FPS))
	}
	if cfg.Server.Listen != prev.Server.Listen {
		a.logger.Warn("listen address change takes effect on restart", zap.String("listen", cfg.Server.Listen))
	}
	a.apply(cfg)
}

// stop tears down the live scanner
func (a *app) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *app) buildLocked() {
	cfg := a.cfg
	a.markers = cfg.Resolve()
	scan := engine.NewRadarScan(config.EngineLocations(a.markers), cfg.EngineConfig())

	reduced := a.opts.reducedMotion || cfg.Display.ReducedMotion
	sc := engine.NewScanner(engine.ScannerConfig{
		Scan:          scan,
		Frames:        a.frames,
		Clock:         a.clock,
		ReducedMotion: func() bool { return reduced || envReducedMotion() },
		Status:        a.reg,
	})

	watcher := audio.NewRevealWatcher(a.pinger)
	a.unsub = append(a.unsub, sc.Subscribe(watcher.Observe))
	if a.server != nil {
		a.unsub = append(a.unsub, sc.Subscribe(a.server.ObserveFrom(sc)))
	}
	a.unsub = append(a.unsub, sc.Subscribe(a.logReveals))

	sc.SetVisible(a.visible)
	sc.Start()
	a.scanner = sc

	if a.server != nil {
		a.server.SetSource(sc)
	}

	ec := scan.Config()
	a.logger.Info("scan started",
		zap.Int("locations", len(a.markers)),
		zap.Duration("cycle", ec.CycleDuration),
		zap.Float64("tolerance", ec.Tolerance),
		zap.Duration("hold", ec.HoldDuration),
		zap.Stringer("hold_policy", ec.HoldPolicy),
		zap.Bool("swept", ec.SweptDetection),
		zap.Bool("scanning", sc.IsScanning()),
	)
}

func (a *app) stopLocked() {
	if a.scanner == nil {
		return
	}
	a.scanner.Stop()
	for _, fn := range a.unsub {
		fn()
	}
	a.unsub = nil
	a.scanner = nil
}

func (a *app) logReveals(snap engine.Snapshot) {
	if !snap.Changed {
		return
	}
	a.logger.Debug("reveal set changed",
		zap.Uint64("version", snap.Version),
		zap.Float64("sweep", snap.Sweep),
		zap.Strings("revealed", snap.Revealed.IDs()),
	)
}

// setVisible forwards focus and toggle signals to the scanner
func (a *app) setVisible(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = v
	if a.scanner != nil {
		a.scanner.SetVisible(v)
	}
}

func (a *app) toggleVisible() {
	a.mu.Lock()
	v := !a.visible
	a.mu.Unlock()
	a.setVisible(v)
}

type viewState struct {
	Snapshot      engine.Snapshot
	Scanning      bool
	Visible       bool
	ReducedMotion bool
	Markers       []config.Marker
}

// view returns what the renderer needs from the live scan
func (a *app) view() viewState {
	a.mu.Lock()
	sc, markers := a.scanner, a.markers
	a.mu.Unlock()
	if sc == nil {
		return viewState{Markers: markers}
	}
	return viewState{
		Snapshot:      sc.Snapshot(),
		Scanning:      sc.IsScanning(),
		Visible:       sc.IsVisible(),
		ReducedMotion: sc.ReducedMotion(),
		Markers:       markers,
	}
}

func (a *app) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Reloaded fires after each successful config swap
func (a *app) Reloaded() <-chan struct{} {
	return a.reloaded
}
