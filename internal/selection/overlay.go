package selection

import (
	"image"
	"image/color"

	"github.com/frudas24/camslice/internal/compositor"
	"github.com/frudas24/camslice/internal/geom"
)

var (
	outlineColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineDash  = []int{4, 3}
	maskColor    = color.NRGBA{A: 140}
	borderColor  = color.RGBAModel.Convert(color.NRGBA{R: 255, G: 255, B: 255, A: 128}).(color.RGBA)
)

// Overlay paints selection feedback on a canvas kept the size of the
// display surface. Rects are given in frame pixels and shifted by origin.
type Overlay struct {
	canvas *compositor.Canvas
}

// NewOverlay wraps canvas.
func NewOverlay(canvas *compositor.Canvas) *Overlay {
	return &Overlay{canvas: canvas}
}

// Canvas returns the backing canvas.
func (o *Overlay) Canvas() *compositor.Canvas {
	return o.canvas
}

// Resize matches the overlay to the surface size.
func (o *Overlay) Resize(w, h int) {
	o.canvas.Resize(w, h)
}

// Clear removes all overlay content.
func (o *Overlay) Clear() {
	o.canvas.Clear()
}

// Outline draws the dashed selection outline.
func (o *Overlay) Outline(r geom.Rect, origin geom.Point) {
	o.canvas.Clear()
	o.canvas.StrokeRect(geom.Offset(r, -origin.X, -origin.Y), outlineColor, outlineDash)
}

// FocusMask dims the whole overlay except r and borders it.
func (o *Overlay) FocusMask(r geom.Rect, origin geom.Point) {
	local := geom.Offset(r, -origin.X, -origin.Y)
	w, h := o.canvas.Size()
	o.canvas.Fill(image.Rect(0, 0, w, h), maskColor)
	o.canvas.ClearRect(local.Image())
	o.canvas.StrokeRect(local, borderColor, nil)
}
