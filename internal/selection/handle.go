package selection

import (
	"math"
	"strings"

	"github.com/frudas24/camslice/internal/geom"
)

// Handle names the grab point of a selection rectangle.
type Handle string

// Handles, eight edges and corners plus the interior.
const (
	HandleNone Handle = ""
	HandleMove Handle = "move"
	HandleN    Handle = "n"
	HandleS    Handle = "s"
	HandleE    Handle = "e"
	HandleW    Handle = "w"
	HandleNW   Handle = "nw"
	HandleNE   Handle = "ne"
	HandleSW   Handle = "sw"
	HandleSE   Handle = "se"
)

// DefaultCursor is the cursor shown away from any handle.
const DefaultCursor = "crosshair"

var cursors = map[Handle]string{
	HandleMove: "move",
	HandleN:    "n-resize",
	HandleS:    "s-resize",
	HandleE:    "e-resize",
	HandleW:    "w-resize",
	HandleNW:   "nw-resize",
	HandleNE:   "ne-resize",
	HandleSW:   "sw-resize",
	HandleSE:   "se-resize",
}

// Cursor returns the cursor style hinting at h.
func (h Handle) Cursor() string {
	if c, ok := cursors[h]; ok {
		return c
	}
	return DefaultCursor
}

// HitTest resolves pt against r using a frame-pixel margin. Corners win over
// edges, edges over the interior.
func HitTest(pt geom.Point, r geom.Rect, margin float64) Handle {
	if r.W <= 0 && r.H <= 0 {
		return HandleNone
	}
	px, py := float64(pt.X), float64(pt.Y)
	x0, y0 := float64(r.X), float64(r.Y)
	x1, y1 := float64(r.X+r.W), float64(r.Y+r.H)

	nearTop := math.Abs(py-y0) < margin
	nearBot := math.Abs(py-y1) < margin
	nearLeft := math.Abs(px-x0) < margin
	nearRight := math.Abs(px-x1) < margin
	inX := px > x0-margin && px < x1+margin
	inY := py > y0-margin && py < y1+margin

	switch {
	case nearTop && nearLeft:
		return HandleNW
	case nearTop && nearRight:
		return HandleNE
	case nearBot && nearLeft:
		return HandleSW
	case nearBot && nearRight:
		return HandleSE
	case nearTop && inX:
		return HandleN
	case nearBot && inX:
		return HandleS
	case nearLeft && inY:
		return HandleW
	case nearRight && inY:
		return HandleE
	case geom.ContainsStrict(r, pt.X, pt.Y):
		return HandleMove
	}
	return HandleNone
}

// Apply recomputes orig for a drag of (dx,dy) on h. Sides dragged past their
// opposite flip the rectangle instead of collapsing it.
func Apply(h Handle, orig geom.Rect, dx, dy int) geom.Rect {
	r := orig
	if h == HandleMove {
		r.X += dx
		r.Y += dy
		return r
	}
	s := string(h)
	if strings.Contains(s, "n") {
		r.Y = orig.Y + dy
		r.H = orig.H - dy
	}
	if strings.Contains(s, "s") {
		r.H = orig.H + dy
	}
	if strings.Contains(s, "w") {
		r.X = orig.X + dx
		r.W = orig.W - dx
	}
	if strings.Contains(s, "e") {
		r.W = orig.W + dx
	}
	if r.W < 1 {
		r.X += r.W
		r.W = max(geom.Abs(r.W), 1)
	}
	if r.H < 1 {
		r.Y += r.H
		r.H = max(geom.Abs(r.H), 1)
	}
	return r
}
