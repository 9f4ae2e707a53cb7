package compositor

import (
	"image"
	"image/color"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/frudas24/camslice/internal/geom"
)

// Canvas is an RGBA backing store that is painted on the session loop and
// snapshotted from other goroutines.
type Canvas struct {
	mu  sync.RWMutex
	img *image.RGBA
}

// NewCanvas returns an unsized canvas.
func NewCanvas() *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

// Size returns the backing resolution.
func (c *Canvas) Size() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Resize reallocates the backing store when the size changes and reports
// whether it did. Contents are cleared on resize.
func (c *Canvas) Resize(w, h int) bool {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return false
	}
	c.img = image.NewRGBA(image.Rect(0, 0, w, h))
	return true
}

// Blit copies the sr sub-rectangle of src to the canvas origin.
func (c *Canvas) Blit(src image.Image, sr image.Rectangle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sr = sr.Intersect(src.Bounds())
	if sr.Empty() {
		return
	}
	xdraw.Copy(c.img, image.Point{}, src, sr, xdraw.Src, nil)
}

// Clear makes every pixel transparent.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.img.Pix)
}

// Fill paints r with col, replacing what was there.
func (c *Canvas) Fill(r image.Rectangle, col color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r = r.Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	xdraw.Draw(c.img, r, image.NewUniform(col), image.Point{}, xdraw.Src)
}

// ClearRect makes r transparent.
func (c *Canvas) ClearRect(r image.Rectangle) {
	c.Fill(r, color.Transparent)
}

// StrokeRect outlines r with one-pixel lines covering columns X..X+W and
// rows Y..Y+H. A non-empty dash alternates on/off run lengths.
func (c *Canvas) StrokeRect(r geom.Rect, col color.RGBA, dash []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r = geom.Normalize(r)
	x0, y0, x1, y1 := r.X, r.Y, r.X+r.W, r.Y+r.H
	d := &dasher{pattern: dash}
	for x := x0; x <= x1; x++ {
		c.plot(x, y0, col, d.next())
	}
	for y := y0 + 1; y <= y1; y++ {
		c.plot(x1, y, col, d.next())
	}
	for x := x1 - 1; x >= x0; x-- {
		c.plot(x, y1, col, d.next())
	}
	for y := y1 - 1; y > y0; y-- {
		c.plot(x0, y, col, d.next())
	}
}

// Snapshot returns a copy of the current contents.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// At returns the pixel at (x,y); used by tests and debugging tools.
func (c *Canvas) At(x, y int) color.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.img.RGBAAt(x, y)
}

// plot writes one pixel when on is true and the pixel is inside the canvas.
func (c *Canvas) plot(x, y int, col color.RGBA, on bool) {
	if !on || !(image.Point{X: x, Y: y}.In(c.img.Bounds())) {
		return
	}
	c.img.SetRGBA(x, y, col)
}

// dasher walks a dash pattern one pixel at a time.
type dasher struct {
	pattern []int
	idx     int
	run     int
}

// next reports whether the current pixel is drawn and advances the pattern.
func (d *dasher) next() bool {
	if len(d.pattern) == 0 {
		return true
	}
	for d.pattern[d.idx] <= 0 {
		d.idx = (d.idx + 1) % len(d.pattern)
		if d.idx == 0 {
			return true
		}
	}
	on := d.idx%2 == 0
	d.run++
	if d.run >= d.pattern[d.idx] {
		d.run = 0
		d.idx = (d.idx + 1) % len(d.pattern)
	}
	return on
}

// Compose draws overlay over base and returns a new image sized like base.
func Compose(base, overlay *image.RGBA) *image.RGBA {
	out := image.NewRGBA(base.Bounds())
	copy(out.Pix, base.Pix)
	if overlay != nil && !overlay.Bounds().Empty() {
		xdraw.Draw(out, out.Bounds(), overlay, overlay.Bounds().Min, xdraw.Over)
	}
	return out
}
