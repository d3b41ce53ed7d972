package audio

import (
	"sync"

	"github.com/lixenwraith/radar-scan/engine"
)

// RevealWatcher pings once per frame in which new locations were revealed.
// Expiries stay silent.
type RevealWatcher struct {
	mu     sync.Mutex
	pinger Pinger
	prev   engine.RevealSet
}

// NewRevealWatcher wraps pinger; nil means silent
func NewRevealWatcher(pinger Pinger) *RevealWatcher {
	if pinger == nil {
		pinger = NopPinger{}
	}
	return &RevealWatcher{pinger: pinger}
}

// Observe is an engine subscriber
func (w *RevealWatcher) Observe(snap engine.Snapshot) {
	if !snap.Changed {
		return
	}
	w.mu.Lock()
	added := snap.Revealed.Added(w.prev)
	w.prev = snap.Revealed
	w.mu.Unlock()

	if len(added) > 0 {
		w.pinger.Ping(len(added))
	}
}
