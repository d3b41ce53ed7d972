package audio

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const (
	sampleRate = beep.SampleRate(44100)

	pingFreq     = 1320.0
	pingStep     = 1.122 // a whole tone up per extra blip
	pingDuration = 90 * time.Millisecond
	pingGap      = 40 * time.Millisecond
	maxBlips     = 3
)

// Pinger sounds a reveal; count is how many locations appeared this frame
type Pinger interface {
	Ping(count int)
}

// NopPinger is the silent Pinger used with --no-audio or when no device exists
type NopPinger struct{}

func (NopPinger) Ping(int) {}

// SoundManager plays reveal pings through the beep speaker
type SoundManager struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

// NewSoundManager creates an uninitialised manager; Ping is a no-op until Initialize
func NewSoundManager() *SoundManager {
	return &SoundManager{mixer: &beep.Mixer{}}
}

// Initialize opens the speaker; repeated calls are no-ops
func (sm *SoundManager) Initialize() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(50*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(sm.mixer)
	sm.initialized = true
	return nil
}

// Cleanup silences the mixer and closes the speaker
func (sm *SoundManager) Cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return
	}
	speaker.Lock()
	sm.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	sm.initialized = false
}

// Ping queues a reveal blip, one per location up to maxBlips
func (sm *SoundManager) Ping(count int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized || count <= 0 {
		return
	}
	s := PingStreamer(sampleRate, count)
	if s == nil {
		return
	}
	speaker.Lock()
	sm.mixer.Add(s)
	speaker.Unlock()
}

// PingStreamer builds the blip sequence for count reveals; nil if count <= 0
func PingStreamer(sr beep.SampleRate, count int) beep.Streamer {
	if count <= 0 {
		return nil
	}
	if count > maxBlips {
		count = maxBlips
	}

	var parts []beep.Streamer
	freq := pingFreq
	for i := 0; i < count; i++ {
		if i > 0 {
			parts = append(parts, beep.Silence(sr.N(pingGap)))
		}
		tone, err := generators.SineTone(sr, freq)
		if err != nil {
			return nil
		}
		blip := newDecay(beep.Take(sr.N(pingDuration), tone), sr.N(pingDuration))
		parts = append(parts, &effects.Volume{Streamer: blip, Base: 2, Volume: -2})
		freq *= pingStep
	}
	return beep.Seq(parts...)
}

// decay fades a streamer out exponentially over total samples
type decay struct {
	streamer beep.Streamer
	pos      int
	total    int
}

func newDecay(s beep.Streamer, total int) *decay {
	return &decay{streamer: s, total: total}
}

func (d *decay) Stream(samples [][2]float64) (int, bool) {
	n, ok := d.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		gain := math.Exp(-5 * float64(d.pos) / float64(d.total))
		samples[i][0] *= gain
		samples[i][1] *= gain
		d.pos++
	}
	return n, ok
}

func (d *decay) Err() error { return d.streamer.Err() }
