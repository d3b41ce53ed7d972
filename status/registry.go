package status

import (
	"math"
	"sync/atomic"
)

// Metric keys written by the scanner
const (
	KeyFrames   = "scan.frames"
	KeyReveals  = "scan.reveals"
	KeyExpiries = "scan.expiries"
	KeyRevealed = "scan.revealed"
	KeySweep    = "scan.sweep"
	KeyVisible  = "scan.visible"
	KeyScanning = "scan.scanning"
)

// Float is an atomic float64; the zero value reads 0
type Float struct {
	bits atomic.Uint64
}

func (f *Float) Set(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *Float) Get() float64  { return math.Float64frombits(f.bits.Load()) }

// Registry groups metric maps by value type
type Registry struct {
	Ints   *MetricMap[atomic.Int64]
	Floats *MetricMap[Float]
	Bools  *MetricMap[atomic.Bool]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		Ints:   NewMetricMap[atomic.Int64](),
		Floats: NewMetricMap[Float](),
		Bools:  NewMetricMap[atomic.Bool](),
	}
}

// Dump copies every metric into a flat map, for the status bar and /metrics
func (r *Registry) Dump() map[string]any {
	out := make(map[string]any, r.Ints.Count()+r.Floats.Count()+r.Bools.Count())
	r.Ints.Range(func(k string, v *atomic.Int64) { out[k] = v.Load() })
	r.Floats.Range(func(k string, v *Float) { out[k] = v.Get() })
	r.Bools.Range(func(k string, v *atomic.Bool) { out[k] = v.Load() })
	return out
}
