package vmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLerpWrap(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
	assert.Equal(t, 1.0, Clamp(2, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))

	assert.Equal(t, 5.0, Lerp(0, 10, 0.5))
	assert.Equal(t, 15.0, Lerp(0, 10, 1.5))

	assert.InDelta(t, 10.0, Wrap(110, 100), 1e-9)
	assert.InDelta(t, 90.0, Wrap(-10, 100), 1e-9)
	assert.Zero(t, Wrap(5, 0))
}

func TestEaseAndPulse(t *testing.T) {
	assert.InDelta(t, 0.0, EaseInOutSine(0), 1e-9)
	assert.InDelta(t, 0.5, EaseInOutSine(0.5), 1e-9)
	assert.InDelta(t, 1.0, EaseInOutSine(1), 1e-9)
	assert.InDelta(t, 1.0, EaseInOutSine(3), 1e-9)

	assert.InDelta(t, 0.0, Pulse(0, 1000), 1e-9)
	assert.InDelta(t, 1.0, Pulse(500, 1000), 1e-9)
	assert.InDelta(t, 0.0, Pulse(1000, 1000), 1e-9)
	assert.Equal(t, 1.0, Pulse(123, 0))
}

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		x, y     float64
	}{
		{"null island", 0, 0, 1000, 500},
		{"north west corner", 90, -180, 0, 0},
		{"south east corner", -90, 180, 2000, 1000},
		{"new york", 40.7128, -74.006, 588.8556, 273.8178},
		{"clamped", 120, 400, 2000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Project(tt.lat, tt.lng)
			assert.InDelta(t, tt.x, x, 0.001)
			assert.InDelta(t, tt.y, y, 0.001)
		})
	}
}

func TestToCell(t *testing.T) {
	col, row := ToCell(1000, 500, 80, 20)
	assert.Equal(t, 40, col)
	assert.Equal(t, 10, row)

	col, row = ToCell(2000, 1000, 80, 20)
	assert.Equal(t, 79, col)
	assert.Equal(t, 19, row)

	col, row = ToCell(5, 5, 0, 0)
	assert.Zero(t, col)
	assert.Zero(t, row)
}
