package framestream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/frudas24/camslice/internal/mjpeg"
)

// FrameFunc receives one encoded frame.
type FrameFunc func(payload []byte, width, height int)

var bars = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// PatternSource renders a moving test pattern: color bars, a sweeping box and
// a frame counter.
type PatternSource struct {
	width   int
	height  int
	fps     int
	quality int
	sink    FrameFunc
}

// NewPatternSource builds a pattern generator.
func NewPatternSource(width, height, fps, quality int, sink FrameFunc) (*PatternSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("framestream: invalid pattern size %dx%d", width, height)
	}
	if sink == nil {
		return nil, errors.New("framestream: frame callback is required")
	}
	if fps <= 0 {
		fps = 30
	}
	return &PatternSource{width: width, height: height, fps: fps, quality: quality, sink: sink}, nil
}

// Run emits frames at the configured rate until ctx is done.
func (p *PatternSource) Run(ctx context.Context) error {
	t := time.NewTicker(time.Second / time.Duration(p.fps))
	defer t.Stop()
	var n uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		n++
		jpg, err := mjpeg.EncodeImage(p.Render(n), p.quality)
		if err != nil {
			return err
		}
		p.sink(jpg, p.width, p.height)
	}
}

// Render draws frame n.
func (p *PatternSource) Render(n uint64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	barW := (p.width + len(bars) - 1) / len(bars)
	for i, c := range bars {
		r := image.Rect(i*barW, 0, (i+1)*barW, p.height)
		xdraw.Draw(img, r, image.NewUniform(c), image.Point{}, xdraw.Src)
	}

	side := p.height / 6
	if side < 4 {
		side = 4
	}
	travel := p.width - side
	x := 0
	if travel > 0 {
		x = int(n*4) % (2 * travel)
		if x > travel {
			x = 2*travel - x
		}
	}
	y := (p.height - side) / 2
	box := image.Rect(x, y, x+side, y+side)
	xdraw.Draw(img, box, image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, xdraw.Src)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, 8+basicfont.Face7x13.Ascent),
	}
	label := fmt.Sprintf("frame %d  %dx%d", n, p.width, p.height)
	bg := image.Rect(4, 4, 12+d.MeasureString(label).Ceil(), 12+basicfont.Face7x13.Height)
	xdraw.Draw(img, bg, image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, xdraw.Src)
	d.DrawString(label)
	return img
}
