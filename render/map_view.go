package render

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/radar-scan/config"
	"github.com/lixenwraith/radar-scan/engine"
	"github.com/lixenwraith/radar-scan/vmath"
)

const (
	trailCols     = 6
	pulsePeriodMs = 900.0
	gridStepX     = 4
	gridStepY     = 2

	runeIdle     = '·'
	runeRevealed = '◉'
	runeScan     = '│'
	runeGrid     = '.'
)

var (
	styleBorder   = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleGrid     = tcell.StyleDefault.Foreground(tcell.NewRGBColor(40, 60, 50))
	styleIdle     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleScan     = tcell.StyleDefault.Foreground(tcell.NewRGBColor(80, 255, 140)).Bold(true)
	styleTooltip  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.NewRGBColor(80, 255, 140))
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.NewRGBColor(20, 40, 30))
	styleStatusHi = styleStatus.Foreground(tcell.ColorYellow).Bold(true)
)

// Frame is everything one draw needs
type Frame struct {
	Snapshot      engine.Snapshot
	Scanning      bool
	Visible       bool
	ReducedMotion bool
	Now           time.Time
}

// MapView draws the scan over a dotted world grid
type MapView struct {
	screen  tcell.Screen
	markers []config.Marker
}

// NewMapView binds a view to a screen and a marker list
func NewMapView(screen tcell.Screen, markers []config.Marker) *MapView {
	m := make([]config.Marker, len(markers))
	copy(m, markers)
	return &MapView{screen: screen, markers: m}
}

// SetMarkers swaps the marker list after a config reload
func (v *MapView) SetMarkers(markers []config.Marker) {
	m := make([]config.Marker, len(markers))
	copy(m, markers)
	v.markers = m
}

// Area returns the inner map rectangle: inside the border, above the status bar
func (v *MapView) Area() (x, y, w, h int) {
	sw, sh := v.screen.Size()
	return 1, 1, sw - 2, sh - 3
}

// ScanColumn maps a sweep percentage to a screen column in the map area
func (v *MapView) ScanColumn(sweep float64) int {
	x, _, w, _ := v.Area()
	if w <= 0 {
		return x
	}
	col := int(sweep / 100 * float64(w))
	if col >= w {
		col = w - 1
	}
	if col < 0 {
		col = 0
	}
	return x + col
}

// MarkerCell returns the screen cell of a marker
func (v *MapView) MarkerCell(m config.Marker) (int, int) {
	x, y, w, h := v.Area()
	col, row := vmath.ToCell(m.X, m.Y, w, h)
	return x + col, y + row
}

// Draw renders f and shows the screen
func (v *MapView) Draw(f Frame) {
	v.screen.Clear()
	sw, sh := v.screen.Size()
	x, y, w, h := v.Area()
	if w < 4 || h < 2 {
		drawText(v.screen, 0, 0, sw, "terminal too small", styleStatusHi)
		v.screen.Show()
		return
	}

	v.drawBorder(sw, sh)
	v.drawGrid(x, y, w, h)

	if f.Scanning && f.Visible {
		v.drawScanLine(f.Snapshot.Sweep, y, h)
	}

	var tooltips []config.Marker
	for _, m := range v.markers {
		cx, cy := v.MarkerCell(m)
		if f.Snapshot.Revealed.Has(m.ID) {
			v.screen.SetContent(cx, cy, runeRevealed, nil, revealedStyle(f.Now))
			tooltips = append(tooltips, m)
			continue
		}
		v.screen.SetContent(cx, cy, runeIdle, nil, styleIdle)
	}
	// Tooltips above markers so labels never hide under other dots
	for _, m := range tooltips {
		cx, cy := v.MarkerCell(m)
		v.drawTooltip(cx, cy, x+w, m.ID)
	}

	v.drawStatus(f, sw, sh)
	v.screen.Show()
}

func (v *MapView) drawBorder(sw, sh int) {
	bottom := sh - 2
	for cx := 1; cx < sw-1; cx++ {
		v.screen.SetContent(cx, 0, '─', nil, styleBorder)
		v.screen.SetContent(cx, bottom, '─', nil, styleBorder)
	}
	for cy := 1; cy < bottom; cy++ {
		v.screen.SetContent(0, cy, '│', nil, styleBorder)
		v.screen.SetContent(sw-1, cy, '│', nil, styleBorder)
	}
	v.screen.SetContent(0, 0, '┌', nil, styleBorder)
	v.screen.SetContent(sw-1, 0, '┐', nil, styleBorder)
	v.screen.SetContent(0, bottom, '└', nil, styleBorder)
	v.screen.SetContent(sw-1, bottom, '┘', nil, styleBorder)
}

func (v *MapView) drawGrid(x, y, w, h int) {
	for row := 0; row < h; row += gridStepY {
		for col := 0; col < w; col += gridStepX {
			v.screen.SetContent(x+col, y+row, runeGrid, nil, styleGrid)
		}
	}
}

// drawScanLine paints the beam and a fading trail to its left
func (v *MapView) drawScanLine(sweep float64, y, h int) {
	x, _, w, _ := v.Area()
	head := v.ScanColumn(sweep)
	for i := trailCols; i >= 1; i-- {
		col := head - i
		if col < x {
			col += w
		}
		fade := 1 - float64(i)/float64(trailCols+1)
		g := int32(vmath.Lerp(30, 160, fade))
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(0, g, g/2))
		for row := 0; row < h; row++ {
			v.screen.SetContent(col, y+row, '░', nil, style)
		}
	}
	for row := 0; row < h; row++ {
		v.screen.SetContent(head, y+row, runeScan, nil, styleScan)
	}
}

func (v *MapView) drawTooltip(cx, cy, right int, label string) {
	text := " " + label + " "
	tx := cx + 2
	if tx+len([]rune(text)) > right {
		tx = cx - 1 - len([]rune(text))
	}
	drawText(v.screen, tx, cy, right, text, styleTooltip)
}

func (v *MapView) drawStatus(f Frame, sw, sh int) {
	row := sh - 1
	for cx := 0; cx < sw; cx++ {
		v.screen.SetContent(cx, row, ' ', nil, styleStatus)
	}

	line := fmt.Sprintf(" sweep %5.1f%%  revealed %d/%d ", f.Snapshot.Sweep, f.Snapshot.Revealed.Len(), len(v.markers))
	n := drawText(v.screen, 0, row, sw, line, styleStatus)

	switch {
	case f.ReducedMotion:
		drawText(v.screen, n, row, sw, " [reduced motion] ", styleStatusHi)
	case !f.Scanning:
		drawText(v.screen, n, row, sw, " [stopped] ", styleStatusHi)
	case !f.Visible:
		drawText(v.screen, n, row, sw, " [paused] ", styleStatusHi)
	}
}

// revealedStyle breathes between two greens
func revealedStyle(now time.Time) tcell.Style {
	p := vmath.Pulse(float64(now.UnixMilli()), pulsePeriodMs)
	g := int32(vmath.Lerp(150, 255, p))
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(g/3, g, g/2)).Bold(p > 0.5)
}

// drawText writes s from (x,y) up to column limit and returns the next column
func drawText(s tcell.Screen, x, y, limit int, text string, style tcell.Style) int {
	for _, r := range text {
		if x >= limit {
			break
		}
		if x >= 0 {
			s.SetContent(x, y, r, nil, style)
		}
		x++
	}
	return x
}
