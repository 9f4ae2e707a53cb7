// Package geom holds the integer frame-pixel geometry shared by the viewer.
package geom

import (
	"image"
	"math"
)

// Point is a position in frame or surface pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect describes a rectangle using top-left origin and size.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Normalize returns a rectangle with non-negative width/height.
func Normalize(r Rect) Rect {
	if r.W < 0 {
		r.X = AddSat(r.X, r.W)
		r.W = Abs(r.W)
	}
	if r.H < 0 {
		r.Y = AddSat(r.Y, r.H)
		r.H = Abs(r.H)
	}
	return r
}

// FromPoints returns the normalized bounding box of two points.
func FromPoints(a, b Point) Rect {
	return Rect{
		X: minInt(a.X, b.X),
		Y: minInt(a.Y, b.Y),
		W: Abs(b.X - a.X),
		H: Abs(b.Y - a.Y),
	}
}

// Contains reports whether a point is inside the rectangle (edges inclusive).
func Contains(r Rect, x, y int) bool {
	if r.W <= 0 || r.H <= 0 {
		return false
	}
	return x >= r.X && x <= AddSat(r.X, r.W) && y >= r.Y && y <= AddSat(r.Y, r.H)
}

// ContainsStrict reports whether a point lies strictly inside the rectangle.
func ContainsStrict(r Rect, x, y int) bool {
	return x > r.X && x < AddSat(r.X, r.W) && y > r.Y && y < AddSat(r.Y, r.H)
}

// Clamp limits r to [0,w) x [0,h). The result never has negative size; ok is
// false when nothing of r survives.
func Clamp(r Rect, w, h int) (Rect, bool) {
	r = Normalize(r)
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	x0 := clampInt(r.X, 0, w)
	y0 := clampInt(r.Y, 0, h)
	x1 := clampInt(AddSat(r.X, r.W), x0, w)
	y1 := clampInt(AddSat(r.Y, r.H), y0, h)
	out := Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
	return out, out.W > 0 && out.H > 0
}

// Offset returns r translated by (dx,dy).
func Offset(r Rect, dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, AddSat(r.X, r.W), AddSat(r.Y, r.H))
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// AddSat returns a+b, saturating at the int limits instead of wrapping.
func AddSat(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

// Abs returns the absolute value of v, saturating at math.MaxInt.
func Abs(v int) int {
	if v == math.MinInt {
		return math.MaxInt
	}
	if v < 0 {
		return -v
	}
	return v
}

// clampInt limits v to [lo,hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// minInt returns the smaller of a and b.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
