package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lixenwraith/radar-scan/config"
	"github.com/lixenwraith/radar-scan/engine"
	"github.com/lixenwraith/radar-scan/server"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type countingPinger struct{ calls []int }

func (p *countingPinger) Ping(n int) { p.calls = append(p.calls, n) }

func singleLocation(id string, pos float64) *config.Config {
	cfg := config.Default()
	cfg.Locations = []config.LocationConfig{{ID: id, Position: &pos}}
	return cfg
}

type rig struct {
	app    *app
	frames *engine.ManualFrameSource
	clock  *engine.MockTimeProvider
	pinger *countingPinger
}

func newRig(t *testing.T, cfg *config.Config, flags options) *rig {
	t.Helper()
	r := &rig{
		frames: engine.NewManualFrameSource(),
		clock:  engine.NewMockTimeProvider(epoch),
		pinger: &countingPinger{},
	}
	r.app = newApp(cfg, appDeps{
		Logger: zaptest.NewLogger(t),
		Frames: r.frames,
		Clock:  r.clock,
		Pinger: r.pinger,
		Flags:  flags,
	})
	t.Cleanup(r.app.stop)
	return r
}

// frameAt advances the clock by d and runs one frame
func (r *rig) frameAt(d time.Duration) {
	r.clock.Advance(d)
	r.frames.Step()
}

func TestApp_RevealAndPing(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{})
	r.app.start()

	r.frameAt(0)
	r.frameAt(5 * time.Second)

	v := r.app.view()
	assert.True(t, v.Scanning)
	assert.True(t, v.Visible)
	assert.False(t, v.ReducedMotion)
	require.Len(t, v.Markers, 1)
	assert.True(t, v.Snapshot.Revealed.Has("A"))
	assert.Equal(t, []int{1}, r.pinger.calls)
}

func TestApp_EmptyLocationListStillScans(t *testing.T) {
	cfg := config.Default()
	cfg.Locations = []config.LocationConfig{}
	require.NoError(t, cfg.Validate())

	r := newRig(t, cfg, options{})
	r.app.start()

	v := r.app.view()
	assert.True(t, v.Scanning)
	assert.Empty(t, v.Markers)
	assert.Equal(t, 1, r.frames.Pending())

	for i := 0; i < 25; i++ {
		r.frameAt(500 * time.Millisecond)
	}
	v = r.app.view()
	assert.Positive(t, v.Snapshot.Frame)
	assert.Zero(t, v.Snapshot.Revealed.Len())
	assert.Empty(t, r.pinger.calls)
}

func TestApp_ReloadSwapsScan(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{})
	r.app.start()
	r.frameAt(0)
	r.frameAt(5 * time.Second)

	r.app.apply(singleLocation("B", 1000))
	select {
	case <-r.app.Reloaded():
	default:
		t.Fatal("reload not signalled")
	}
	assert.Equal(t, 1, r.frames.Pending(), "old frame cancelled, new one requested")

	v := r.app.view()
	assert.Equal(t, "B", v.Markers[0].ID)
	assert.Equal(t, 0, v.Snapshot.Revealed.Len(), "new scan starts empty")

	// The new scan anchors its cycle on its own first frame
	r.frameAt(time.Second)
	r.frameAt(5 * time.Second)
	v = r.app.view()
	assert.True(t, v.Snapshot.Revealed.Has("B"))
	assert.False(t, v.Snapshot.Revealed.Has("A"))
}

func TestApp_ReloadKeepsFlagOverrides(t *testing.T) {
	flags := options{fps: 30, listen: "127.0.0.1:0", noAudio: true, reducedMotion: true}
	r := newRig(t, singleLocation("A", 1000), flags)
	r.app.start()

	reloaded := singleLocation("B", 1000)
	reloaded.Scan.FPS = 60
	reloaded.Server.Listen = "0.0.0.0:9000"
	reloaded.Display.Audio = true
	reloaded.Display.ReducedMotion = false
	r.app.reload(reloaded)

	cfg := r.app.config()
	assert.Equal(t, 30, cfg.Scan.FPS)
	assert.Equal(t, "127.0.0.1:0", cfg.Server.Listen)
	assert.False(t, cfg.Display.Audio)
	assert.True(t, cfg.Display.ReducedMotion)

	v := r.app.view()
	assert.Equal(t, "B", v.Markers[0].ID)
	assert.True(t, v.ReducedMotion)
	assert.False(t, v.Scanning)
}

func TestApp_ReloadWithoutFlagsTakesFileValues(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{})
	r.app.start()

	reloaded := singleLocation("B", 1000)
	reloaded.Display.Audio = false
	r.app.reload(reloaded)

	assert.False(t, r.app.config().Display.Audio)
	assert.True(t, r.app.view().Scanning)
}

func TestApp_VisibilitySurvivesReload(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{})
	r.app.start()
	r.app.setVisible(false)
	assert.Equal(t, 0, r.frames.Pending())

	r.app.apply(singleLocation("B", 500))
	v := r.app.view()
	assert.True(t, v.Scanning)
	assert.False(t, v.Visible)
	assert.Equal(t, 0, r.frames.Pending())

	r.app.toggleVisible()
	assert.True(t, r.app.view().Visible)
	assert.Equal(t, 1, r.frames.Pending())
}

func TestApp_ForcedReducedMotion(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{reducedMotion: true})
	r.app.start()

	v := r.app.view()
	assert.False(t, v.Scanning)
	assert.True(t, v.ReducedMotion)
	assert.Equal(t, 0, r.frames.Pending())
}

func TestApp_ReducedMotionFromEnv(t *testing.T) {
	t.Setenv("REDUCED_MOTION", "1")
	r := newRig(t, singleLocation("A", 1000), options{})
	r.app.start()

	v := r.app.view()
	assert.False(t, v.Scanning)
	assert.True(t, v.ReducedMotion)
}

func TestApp_StoppedViewIsNotReducedMotion(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{})
	r.app.start()
	r.app.stop()

	v := r.app.view()
	assert.False(t, v.Scanning)
	assert.False(t, v.ReducedMotion)
}

func TestApp_ServerFollowsScanner(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{})
	srv := r.app.enableServer(server.Config{})
	r.app.start()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, true, health["scanning"])
}

func TestHandleEvent(t *testing.T) {
	r := newRig(t, singleLocation("A", 1000), options{})
	r.app.start()

	assert.False(t, r.app.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), nil))
	assert.False(t, r.app.handleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), nil))
	assert.False(t, r.app.handleEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), nil))

	assert.True(t, r.app.handleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), nil))
	assert.False(t, r.app.view().Visible)

	assert.True(t, r.app.handleEvent(tcell.NewEventFocus(true), nil))
	assert.True(t, r.app.view().Visible)

	assert.True(t, r.app.handleEvent(tcell.NewEventFocus(false), nil))
	assert.False(t, r.app.view().Visible)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	cfg, err := loadConfig(options{fps: 30, listen: "127.0.0.1:0", noAudio: true, reducedMotion: true})
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Scan.FPS)
	assert.Equal(t, "127.0.0.1:0", cfg.Server.Listen)
	assert.False(t, cfg.Display.Audio)
	assert.True(t, cfg.Display.ReducedMotion)
}

func TestLoadConfig_RejectsBadFPS(t *testing.T) {
	_, err := loadConfig(options{fps: 1000})
	assert.ErrorIs(t, err, config.ErrBadFPS)
}

func TestEnvReducedMotion(t *testing.T) {
	for _, v := range []string{"1", "true", "reduce", " YES "} {
		t.Setenv("REDUCED_MOTION", v)
		assert.True(t, envReducedMotion(), v)
	}
	for _, v := range []string{"", "0", "no-preference"} {
		t.Setenv("REDUCED_MOTION", v)
		assert.False(t, envReducedMotion(), v)
	}
}

func TestPrintLocations(t *testing.T) {
	near, edge, below, far := 500.0, 2000.0, -40.0, 2500.0
	cfg := config.Default()
	cfg.Locations = []config.LocationConfig{
		{ID: "Near", Position: &near},
		{ID: "Edge", Position: &edge},
		{ID: "Below", Position: &below},
		{ID: "Far", Position: &far},
	}

	var buf bytes.Buffer
	require.NoError(t, printLocations(&buf, cfg))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "Near")
	assert.Contains(t, lines[1], "25.00")
	assert.Contains(t, lines[1], "2.5s")
	assert.Contains(t, lines[1], "2.2s-2.8s")

	// The far edge of the axis is still reached at the end of the cycle
	assert.Contains(t, lines[2], "Edge")
	assert.Contains(t, lines[2], "9.7s-10s")
	assert.NotContains(t, lines[2], "never")

	// Just below the axis is reached at the start of the cycle
	assert.Contains(t, lines[3], "Below")
	assert.Contains(t, lines[3], "0s-100ms")

	assert.Contains(t, lines[4], "Far")
	assert.Contains(t, lines[4], "never")
}

func TestHitWindow(t *testing.T) {
	tests := []struct {
		name     string
		p        float64
		from, to float64
		ok       bool
	}{
		{"centre", 50, 47, 53, true},
		{"axis end", 100, 97, 100, true},
		{"just past end", 102.5, 99.5, 100, true},
		{"beyond reach", 103, 0, 0, false},
		{"just before start", -2, 0, 1, true},
		{"far before start", -3, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := hitWindow(tt.p, 3)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.from, from, 1e-9)
				assert.InDelta(t, tt.to, to, 1e-9)
			}
		})
	}
}
