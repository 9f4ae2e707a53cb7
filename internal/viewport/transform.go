package viewport

import (
	"math"

	"github.com/frudas24/camslice/internal/geom"
)

// Pointer is a pointer position relative to the displayed surface element.
// X/Y are viewport pixels from the element's top-left corner and ViewW/ViewH
// are the element's displayed size, zoom included.
type Pointer struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	ViewW float64 `json:"viewW"`
	ViewH float64 `json:"viewH"`
}

// PointerToSurface maps a pointer into surface backing pixels, undoing the
// display scale and any mirroring. It reports false when the surface or the
// displayed element has no size.
func PointerToSurface(p Pointer, surfaceW, surfaceH int, s State) (geom.Point, bool) {
	if surfaceW <= 0 || surfaceH <= 0 || !(p.ViewW > 0) || !(p.ViewH > 0) {
		return geom.Point{}, false
	}
	mx := p.X * (float64(surfaceW) / p.ViewW)
	my := p.Y * (float64(surfaceH) / p.ViewH)
	if s.MirrorX {
		mx = float64(surfaceW) - mx
	}
	if s.MirrorY {
		my = float64(surfaceH) - my
	}
	if math.IsNaN(mx) || math.IsNaN(my) || math.IsInf(mx, 0) || math.IsInf(my, 0) {
		return geom.Point{}, false
	}
	return geom.Point{X: int(math.Round(mx)), Y: int(math.Round(my))}, true
}

// FrameMargin converts a screen-space margin into frame pixels at zoom z.
func FrameMargin(screenPx float64, z float64) float64 {
	if !(z > 0) {
		z = 1
	}
	return screenPx / z
}
