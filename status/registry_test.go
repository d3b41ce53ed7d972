package status

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricMap_GetReturnsStablePointer(t *testing.T) {
	m := NewMetricMap[atomic.Int64]()
	a := m.Get("x")
	b := m.Get("x")
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Count())
}

func TestMetricMap_ConcurrentGet(t *testing.T) {
	m := NewMetricMap[atomic.Int64]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Get(KeyFrames).Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1600, m.Get(KeyFrames).Load())
}

func TestRegistry_Dump(t *testing.T) {
	r := NewRegistry()
	r.Ints.Get(KeyReveals).Store(3)
	r.Floats.Get(KeySweep).Set(42.5)
	r.Bools.Get(KeyVisible).Store(true)

	d := r.Dump()
	assert.Equal(t, map[string]any{
		KeyReveals: int64(3),
		KeySweep:   42.5,
		KeyVisible: true,
	}, d)
}
