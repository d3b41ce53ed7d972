package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/radar-scan/audio"
	"github.com/lixenwraith/radar-scan/config"
	"github.com/lixenwraith/radar-scan/core"
	"github.com/lixenwraith/radar-scan/engine"
	"github.com/lixenwraith/radar-scan/render"
	"github.com/lixenwraith/radar-scan/server"
)

// headlessReport is how often headless mode logs the scan state
const headlessReport = time.Second

type options struct {
	configPath    string
	reducedMotion bool
	noAudio       bool
	listen        string
	headless      bool
	fps           int
	debug         bool
	logFile       string
}

// loadConfig reads the file (or the defaults) and applies flag overrides
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.fps > 0 {
		cfg.Scan.FPS = opts.fps
	}
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}
	if opts.noAudio {
		cfg.Display.Audio = false
	}
	if opts.reducedMotion {
		cfg.Display.ReducedMotion = true
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(opts.debug, opts.logFile, opts.headless)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := engine.NewTickerFrameSource(cfg.FrameInterval())
	frames.Start()
	defer frames.Stop()

	var pinger audio.Pinger = audio.NopPinger{}
	if cfg.Display.Audio && !opts.headless {
		sm := audio.NewSoundManager()
		if err := sm.Initialize(); err != nil {
			logger.Warn("audio unavailable, continuing without sound", zap.Error(err))
		} else {
			defer sm.Cleanup()
			pinger = sm
		}
	}

	a := newApp(cfg, appDeps{
		Logger: logger,
		Frames: frames,
		Pinger: pinger,
		Flags:  opts,
	})

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Listen != "" {
		srv := a.enableServer(server.Config{SweepInterval: cfg.Server.SweepInterval})
		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			if err := srv.ListenAndServe(gctx, cfg.Server.Listen); err != nil {
				return fmt.Errorf("snapshot server: %w", err)
			}
			return nil
		})
	}

	a.start()
	defer a.stop()

	if opts.configPath != "" {
		w, err := config.NewWatcher(opts.configPath, config.DefaultDebounce, logger.Named("config"))
		if err != nil {
			logger.Warn("config watch disabled", zap.Error(err))
		} else {
			g.Go(func() error { return w.Run(gctx) })
			g.Go(func() error { return a.followUpdates(gctx, w.Updates()) })
		}
	}

	if opts.headless {
		g.Go(func() error { return a.runHeadless(gctx) })
	} else {
		g.Go(func() error {
			defer cancel()
			return a.runTerminal(gctx)
		})
	}

	return g.Wait()
}

// followUpdates applies reloaded configs until ctx is done
func (a *app) followUpdates(ctx context.Context, updates <-chan *config.Config) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-updates:
			a.reload(cfg)
		}
	}
}

// runHeadless logs the scan state periodically instead of drawing it
func (a *app) runHeadless(ctx context.Context) error {
	ticker := time.NewTicker(headlessReport)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v := a.view()
			a.logger.Info("scan",
				zap.Float64("sweep", v.Snapshot.Sweep),
				zap.Strings("revealed", v.Snapshot.Revealed.IDs()),
				zap.Int("locations", len(v.Markers)),
				zap.Uint64("version", v.Snapshot.Version),
				zap.Bool("scanning", v.Scanning),
				zap.Bool("reduced_motion", v.ReducedMotion),
			)
		}
	}
}

// runTerminal owns the screen: input, focus and drawing
func (a *app) runTerminal(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	core.SetCrashTarget(screen)
	defer core.SetCrashTarget(nil)
	defer screen.Fini()

	screen.EnableFocus()
	screen.HideCursor()

	view := render.NewMapView(screen, a.view().Markers)

	events := make(chan tcell.Event, 64)
	done := make(chan struct{})
	defer close(done)
	core.Go(func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	})

	ticker := time.NewTicker(a.config().FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !a.handleEvent(ev, screen) {
				return nil
			}

		case <-a.Reloaded():
			view.SetMarkers(a.view().Markers)

		case now := <-ticker.C:
			v := a.view()
			view.Draw(render.Frame{
				Snapshot:      v.Snapshot,
				Scanning:      v.Scanning,
				Visible:       v.Visible,
				ReducedMotion: v.ReducedMotion,
				Now:           now,
			})
		}
	}
}

// handleEvent returns false when the user asked to quit
func (a *app) handleEvent(ev tcell.Event, screen tcell.Screen) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
			a.toggleVisible()
		}
	case *tcell.EventFocus:
		a.setVisible(ev.Focused)
	case *tcell.EventResize:
		if screen != nil {
			screen.Sync()
		}
	}
	return true
}
