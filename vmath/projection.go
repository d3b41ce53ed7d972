package vmath

// Reference map space shared with the scan axis
const (
	MapWidth  = 2000.0
	MapHeight = 1000.0
)

// Project maps latitude/longitude in degrees onto the equirectangular
// reference space: x grows eastward from -180°, y grows southward from 90°.
// Inputs are clamped to the valid ranges.
func Project(lat, lng float64) (x, y float64) {
	lat = Clamp(lat, -90, 90)
	lng = Clamp(lng, -180, 180)
	x = (lng + 180) / 360 * MapWidth
	y = (90 - lat) / 180 * MapHeight
	return x, y
}

// ToCell scales a reference-space point into a w×h cell grid, clamped to the grid
func ToCell(x, y float64, w, h int) (col, row int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	col = int(Clamp(x/MapWidth*float64(w), 0, float64(w-1)))
	row = int(Clamp(y/MapHeight*float64(h), 0, float64(h-1)))
	return col, row
}
