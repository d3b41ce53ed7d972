package engine

import (
	"sort"
	"time"
)

// Snapshot is the externally visible scan state after one frame.
// Values are immutable; Revealed is shared between snapshots until it changes.
type Snapshot struct {
	Sweep    float64   // 0..100
	Revealed RevealSet // ids currently revealed
	Version  uint64    // increments only when Revealed changes
	Changed  bool      // Revealed differs from the previous frame
	Frame    uint64
	At       time.Time
}

// RevealSet is a read-only set of revealed location ids
type RevealSet struct {
	ids []string // sorted
	set map[string]struct{}
}

func newRevealSet(revealed map[string]revealRecord) RevealSet {
	ids := make([]string, 0, len(revealed))
	set := make(map[string]struct{}, len(revealed))
	for id := range revealed {
		ids = append(ids, id)
		set[id] = struct{}{}
	}
	sort.Strings(ids)
	return RevealSet{ids: ids, set: set}
}

// Has reports whether id is revealed
func (s RevealSet) Has(id string) bool {
	_, ok := s.set[id]
	return ok
}

// Len returns the number of revealed ids
func (s RevealSet) Len() int {
	return len(s.ids)
}

// IDs returns the revealed ids in sorted order
func (s RevealSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Added returns ids present in s but not in prev, sorted
func (s RevealSet) Added(prev RevealSet) []string {
	var out []string
	for _, id := range s.ids {
		if !prev.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
