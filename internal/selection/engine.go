package selection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/frudas24/camslice/internal/compositor"
	"github.com/frudas24/camslice/internal/geom"
	"github.com/frudas24/camslice/internal/viewport"
)

const (
	// DefaultEdgeMargin is the screen-space handle margin.
	DefaultEdgeMargin = 8.0
	// DefaultMinSize is the smallest selection, per side, that opens a menu.
	DefaultMinSize = 4
	// DefaultFocusRefresh is the focus mask redraw interval.
	DefaultFocusRefresh = 16 * time.Millisecond
	// DragThreshold is the movement in frame pixels that turns a click into a drag.
	DragThreshold = 2
)

var (
	// ErrNoMenu is returned when a menu choice arrives with no menu open.
	ErrNoMenu = errors.New("selection: no menu pending")
)

// CropReporter receives best-effort hardware crop requests.
type CropReporter interface {
	SetCrop(ctx context.Context, r geom.Rect) error
	ResetCrop(ctx context.Context) error
}

// Scheduler runs repeating work on the session loop.
type Scheduler interface {
	Repeat(interval time.Duration, fn func()) (cancel func())
}

// ViewState exposes the current zoom and mirror flags.
type ViewState interface {
	State() viewport.State
}

// Input is one pointer event over the display surface.
type Input struct {
	viewport.Pointer
	Button  int
	ScreenX float64
	ScreenY float64
}

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	EdgeMargin   float64
	MinSize      int
	FocusRefresh time.Duration
	Device       CropReporter
	OnMenu       func(Menu)
	OnCursor     func(cursor string)
}

// pendingMenu is the rect awaiting a menu choice.
type pendingMenu struct {
	rect geom.Rect
	keep bool
}

// Engine is the selection state machine. All methods must be called from the
// session loop.
type Engine struct {
	comp    *compositor.Compositor
	overlay *Overlay
	view    ViewState
	sched   Scheduler
	opts    Options

	mode      Mode
	menu      *pendingMenu
	cursor    string
	stopFocus func()
}

// New builds an engine in the None state.
func New(comp *compositor.Compositor, overlay *Overlay, view ViewState, sched Scheduler, opts Options) (*Engine, error) {
	if comp == nil || overlay == nil || view == nil || sched == nil {
		return nil, fmt.Errorf("selection: compositor, overlay, view and scheduler are required")
	}
	if opts.EdgeMargin <= 0 {
		opts.EdgeMargin = DefaultEdgeMargin
	}
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultMinSize
	}
	if opts.FocusRefresh <= 0 {
		opts.FocusRefresh = DefaultFocusRefresh
	}
	return &Engine{
		comp:    comp,
		overlay: overlay,
		view:    view,
		sched:   sched,
		opts:    opts,
		mode:    None{},
		cursor:  DefaultCursor,
	}, nil
}

// Mode returns the current state.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Menu returns the pending menu rect, if any.
func (e *Engine) Menu() (geom.Rect, bool) {
	if e.menu == nil {
		return geom.Rect{}, false
	}
	return e.menu.rect, true
}

// Cursor returns the current cursor hint.
func (e *Engine) Cursor() string {
	return e.cursor
}

// Info returns the badge rect and mode label.
func (e *Engine) Info() Info {
	info := Info{Mode: e.mode.Label()}
	var r *geom.Rect
	switch m := e.mode.(type) {
	case Drawing:
		r = &m.Rect
	case Adjust:
		r = &m.Rect
	case Focus:
		r = &m.Rect
	case Crop:
		r = &m.Applied
	}
	if r == nil && e.menu != nil {
		mr := e.menu.rect
		r = &mr
	}
	if r == nil {
		if cr := e.comp.CropRegion(); cr != nil {
			info.Mode = Crop{}.Label()
			r = cr
		}
	}
	info.Rect = r
	return info
}

// PointerDown handles a button press.
func (e *Engine) PointerDown(in Input) {
	if in.Button != 0 {
		return
	}
	if e.menu != nil {
		e.dismissMenu()
		return
	}
	if _, ok := e.mode.(Focus); ok {
		e.Clear()
		return
	}
	pt, ok := e.toFrame(in)
	if !ok {
		return
	}
	if a, ok := e.mode.(Adjust); ok {
		if h := HitTest(pt, a.Rect, e.margin()); h != HandleNone {
			a.Drag = &Drag{Handle: h, Start: pt, StartRect: a.Rect}
			e.mode = a
			return
		}
	}
	e.setMode(Drawing{Start: pt, Rect: geom.Rect{X: pt.X, Y: pt.Y}})
	e.overlay.Clear()
	e.setCursor(DefaultCursor)
}

// PointerMove handles pointer motion.
func (e *Engine) PointerMove(in Input) {
	pt, ok := e.toFrame(in)
	if !ok {
		return
	}
	switch m := e.mode.(type) {
	case Drawing:
		m.Rect = geom.FromPoints(m.Start, pt)
		e.mode = m
		e.overlay.Outline(m.Rect, e.comp.Origin())
	case Adjust:
		if m.Drag == nil {
			e.setCursor(HitTest(pt, m.Rect, e.margin()).Cursor())
			return
		}
		dx, dy := pt.X-m.Drag.Start.X, pt.Y-m.Drag.Start.Y
		if geom.Abs(dx) > DragThreshold || geom.Abs(dy) > DragThreshold {
			m.Drag.Moved = true
		}
		m.Rect = Apply(m.Drag.Handle, m.Drag.StartRect, dx, dy)
		e.mode = m
		e.overlay.Outline(m.Rect, e.comp.Origin())
	}
}

// PointerUp handles a button release.
func (e *Engine) PointerUp(in Input) {
	switch m := e.mode.(type) {
	case Adjust:
		if m.Drag == nil {
			return
		}
		moved := m.Drag.Moved
		m.Drag = nil
		e.mode = m
		if !moved {
			e.openMenu(m.Rect, true, in)
			return
		}
		e.overlay.Outline(m.Rect, e.comp.Origin())
	case Drawing:
		if pt, ok := e.toFrame(in); ok {
			m.Rect = geom.FromPoints(m.Start, pt)
		}
		e.setMode(None{})
		if m.Rect.W < e.opts.MinSize || m.Rect.H < e.opts.MinSize {
			e.overlay.Clear()
			return
		}
		e.overlay.Outline(m.Rect, e.comp.Origin())
		e.openMenu(m.Rect, false, in)
	}
}

// Context handles a secondary click; in Adjust it re-opens the menu.
func (e *Engine) Context(in Input) {
	if a, ok := e.mode.(Adjust); ok && a.Drag == nil {
		e.openMenu(a.Rect, true, in)
	}
}

// ChooseMenu applies a menu choice to the pending rect.
func (e *Engine) ChooseMenu(c Choice) error {
	if e.menu == nil {
		return ErrNoMenu
	}
	switch c {
	case ChoiceAdjust, ChoiceFocus, ChoiceCrop, ChoiceCancel:
	default:
		return fmt.Errorf("selection: unknown menu choice %q", c)
	}
	rect := e.menu.rect
	e.closeMenu()
	switch c {
	case ChoiceCancel:
		e.setMode(None{})
		e.overlay.Clear()
		e.setCursor(DefaultCursor)
	case ChoiceAdjust:
		e.setMode(Adjust{Rect: rect})
		e.overlay.Outline(rect, e.comp.Origin())
		e.setCursor(DefaultCursor)
	case ChoiceFocus:
		e.setMode(Focus{Rect: rect})
		e.drawFocus()
		e.stopFocus = e.sched.Repeat(e.opts.FocusRefresh, e.drawFocus)
	case ChoiceCrop:
		e.applyCrop(rect)
	}
	return nil
}

// ResetCrop removes the crop at the operator's request and tells the device.
func (e *Engine) ResetCrop() {
	e.comp.SetCropRegion(nil)
	if e.menu != nil {
		e.closeMenu()
	}
	e.setMode(None{})
	e.overlay.Clear()
	e.setCursor(DefaultCursor)
	e.report("reset crop", func(ctx context.Context, d CropReporter) error {
		return d.ResetCrop(ctx)
	})
}

// ExternalCropReset drops a crop cleared elsewhere. A selection in progress
// over the cropped view is kept; only Crop returns to None.
func (e *Engine) ExternalCropReset() {
	e.comp.SetCropRegion(nil)
	if _, ok := e.mode.(Crop); ok {
		e.setMode(None{})
	}
}

// Clear returns to None and wipes the overlay. The crop region is kept.
func (e *Engine) Clear() {
	if e.menu != nil {
		e.closeMenu()
	}
	e.setMode(None{})
	e.overlay.Clear()
	e.setCursor(DefaultCursor)
}

// Resize matches the overlay to a resized surface and repaints it.
func (e *Engine) Resize(w, h int) {
	e.overlay.Resize(w, h)
	e.Redraw()
}

// Redraw repaints the overlay for the current state.
func (e *Engine) Redraw() {
	origin := e.comp.Origin()
	switch m := e.mode.(type) {
	case Drawing:
		e.overlay.Outline(m.Rect, origin)
	case Adjust:
		e.overlay.Outline(m.Rect, origin)
	case Focus:
		e.overlay.FocusMask(m.Rect, origin)
	default:
		if e.menu != nil {
			e.overlay.Outline(e.menu.rect, origin)
			return
		}
		e.overlay.Clear()
	}
}

// applyCrop installs r as the crop and reports it to the device.
func (e *Engine) applyCrop(r geom.Rect) {
	e.overlay.Clear()
	fw, fh := e.comp.FrameSize()
	clamped, ok := geom.Clamp(r, fw, fh)
	if !ok {
		e.setMode(None{})
		return
	}
	e.comp.SetCropRegion(&clamped)
	e.setMode(Crop{Applied: clamped})
	e.setCursor(DefaultCursor)
	e.report("set crop", func(ctx context.Context, d CropReporter) error {
		return d.SetCrop(ctx, clamped)
	})
}

// report runs a device request off the loop; failures only get logged.
func (e *Engine) report(what string, fn func(context.Context, CropReporter) error) {
	d := e.opts.Device
	if d == nil {
		return
	}
	go func() {
		if err := fn(context.Background(), d); err != nil {
			log.Printf("selection: device %s failed: %v", what, err)
		}
	}()
}

// drawFocus repaints the focus mask.
func (e *Engine) drawFocus() {
	if f, ok := e.mode.(Focus); ok {
		e.overlay.FocusMask(f.Rect, e.comp.Origin())
	}
}

// setMode switches mode, stopping the focus refresh when Focus ends.
func (e *Engine) setMode(m Mode) {
	if _, wasFocus := e.mode.(Focus); wasFocus {
		if _, still := m.(Focus); !still && e.stopFocus != nil {
			e.stopFocus()
			e.stopFocus = nil
		}
	}
	e.mode = m
}

// openMenu records r as pending and asks the UI to show the menu.
func (e *Engine) openMenu(r geom.Rect, keep bool, in Input) {
	e.menu = &pendingMenu{rect: r, keep: keep}
	if e.opts.OnMenu != nil {
		e.opts.OnMenu(Menu{Open: true, ScreenX: in.ScreenX, ScreenY: in.ScreenY, Rect: r})
	}
}

// closeMenu forgets the pending menu and hides it.
func (e *Engine) closeMenu() {
	e.menu = nil
	if e.opts.OnMenu != nil {
		e.opts.OnMenu(Menu{})
	}
}

// dismissMenu closes the menu on an outside click. The Adjust rect survives.
func (e *Engine) dismissMenu() {
	keep := e.menu.keep
	e.closeMenu()
	if keep {
		if a, ok := e.mode.(Adjust); ok {
			e.overlay.Outline(a.Rect, e.comp.Origin())
			return
		}
	}
	e.overlay.Clear()
}

// toFrame maps a pointer into full-frame pixels. Recomputed per event since
// zoom, mirroring and the crop can change between events.
func (e *Engine) toFrame(in Input) (geom.Point, bool) {
	sw, sh := e.comp.Surface().Size()
	pt, ok := viewport.PointerToSurface(in.Pointer, sw, sh, e.view.State())
	if !ok {
		return geom.Point{}, false
	}
	o := e.comp.Origin()
	return geom.Point{X: pt.X + o.X, Y: pt.Y + o.Y}, true
}

// margin returns the handle grab distance in frame pixels.
func (e *Engine) margin() float64 {
	return viewport.FrameMargin(e.opts.EdgeMargin, e.view.State().Zoom)
}

// setCursor publishes c when it differs from the current cursor.
func (e *Engine) setCursor(c string) {
	if c == e.cursor {
		return
	}
	e.cursor = c
	if e.opts.OnCursor != nil {
		e.opts.OnCursor(c)
	}
}
