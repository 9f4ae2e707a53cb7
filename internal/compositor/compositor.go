// Package compositor paints decoded frames onto the display surface,
// optionally cropped to a region of interest.
package compositor

import (
	"image"
	"sync"

	"github.com/frudas24/camslice/internal/geom"
)

// MaxDimension bounds the surface side length in pixels.
const MaxDimension = 16384

// Compositor owns the display surface and the active crop region.
type Compositor struct {
	surface *Canvas

	mu       sync.Mutex
	crop     *geom.Rect
	shown    geom.Rect
	frameW   int
	frameH   int
	onResize func(w, h int)
}

// New returns a compositor painting into surface.
func New(surface *Canvas) *Compositor {
	return &Compositor{surface: surface}
}

// Surface returns the display surface.
func (c *Compositor) Surface() *Canvas {
	return c.surface
}

// OnResize registers fn to run whenever the surface backing size changes.
func (c *Compositor) OnResize(fn func(w, h int)) {
	c.mu.Lock()
	c.onResize = fn
	c.mu.Unlock()
}

// SetCropRegion installs r as the crop, clamped to the last frame. A nil or
// degenerate region removes the crop. Takes effect on the next Render.
func (c *Compositor) SetCropRegion(r *geom.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r == nil {
		c.crop = nil
		return
	}
	clamped, ok := geom.Clamp(*r, c.frameW, c.frameH)
	if !ok {
		c.crop = nil
		return
	}
	c.crop = &clamped
}

// CropRegion returns a copy of the installed crop, or nil.
func (c *Compositor) CropRegion() *geom.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crop == nil {
		return nil
	}
	r := *c.crop
	return &r
}

// Render paints img, whose full frame is width x height pixels. With a crop
// the surface is resized to the crop and only that region is copied. The
// frame size is bounded by the bitmap and by MaxDimension.
func (c *Compositor) Render(img image.Image, width, height int) {
	if img == nil {
		return
	}
	b := img.Bounds()
	width = min(width, b.Dx(), MaxDimension)
	height = min(height, b.Dy(), MaxDimension)
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	c.frameW, c.frameH = width, height
	region := geom.Rect{W: width, H: height}
	if c.crop != nil {
		if clamped, ok := geom.Clamp(*c.crop, width, height); ok {
			*c.crop = clamped
			region = clamped
		} else {
			c.crop = nil
		}
	}
	c.shown = region
	onResize := c.onResize
	c.mu.Unlock()

	if c.surface.Resize(region.W, region.H) && onResize != nil {
		onResize(region.W, region.H)
	}
	off := img.Bounds().Min
	c.surface.Blit(img, region.Image().Add(off))
}

// Origin returns the frame coordinates of the surface's top-left pixel.
func (c *Compositor) Origin() geom.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return geom.Point{X: c.shown.X, Y: c.shown.Y}
}

// FrameSize returns the dimensions of the last rendered frame.
func (c *Compositor) FrameSize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameW, c.frameH
}
