package selection

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/frudas24/camslice/internal/compositor"
	"github.com/frudas24/camslice/internal/geom"
	"github.com/frudas24/camslice/internal/testutil"
	"github.com/frudas24/camslice/internal/viewport"
)

// fakeSched records repeating tasks without running them on a timer.
type fakeSched struct {
	tasks    []func()
	canceled int
}

// Repeat records fn and returns a cancel that counts calls.
func (f *fakeSched) Repeat(_ time.Duration, fn func()) func() {
	f.tasks = append(f.tasks, fn)
	return func() { f.canceled++ }
}

type harness struct {
	eng     *Engine
	comp    *compositor.Compositor
	overlay *Overlay
	view    *viewport.Controller
	sched   *fakeSched
	device  *testutil.FakeDevice
	menus   []Menu
}

// newHarness renders one 640x480 frame so the surface maps 1:1 to the view.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		comp:    compositor.New(compositor.NewCanvas()),
		overlay: NewOverlay(compositor.NewCanvas()),
		view:    viewport.NewController(),
		sched:   &fakeSched{},
		device:  testutil.NewFakeDevice(),
	}
	eng, err := New(h.comp, h.overlay, h.view, h.sched, Options{
		Device: h.device,
		OnMenu: func(m Menu) { h.menus = append(h.menus, m) },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.eng = eng
	h.comp.OnResize(eng.Resize)
	h.comp.Render(image.NewRGBA(image.Rect(0, 0, 640, 480)), 640, 480)
	return h
}

// at builds a primary-button input at surface pixel (x,y).
func (h *harness) at(x, y int) Input {
	w, hh := h.comp.Surface().Size()
	return Input{
		Pointer: viewport.Pointer{X: float64(x), Y: float64(y), ViewW: float64(w), ViewH: float64(hh)},
		ScreenX: float64(x) + 1000,
		ScreenY: float64(y) + 1000,
	}
}

// drag performs down, move and up.
func (h *harness) drag(x0, y0, x1, y1 int) {
	h.eng.PointerDown(h.at(x0, y0))
	h.eng.PointerMove(h.at(x1, y1))
	h.eng.PointerUp(h.at(x1, y1))
}

// overlayEmpty reports whether every overlay pixel is transparent.
func (h *harness) overlayEmpty() bool {
	for _, b := range h.overlay.Canvas().Snapshot().Pix {
		if b != 0 {
			return false
		}
	}
	return true
}

// TestHitTest_Handles verifies corner, edge and interior resolution.
func TestHitTest_Handles(t *testing.T) {
	r := geom.Rect{X: 100, Y: 100, W: 200, H: 150}
	cases := []struct {
		pt   geom.Point
		want Handle
	}{
		{geom.Point{X: 100, Y: 175}, HandleW},
		{geom.Point{X: 100, Y: 100}, HandleNW},
		{geom.Point{X: 200, Y: 175}, HandleMove},
		{geom.Point{X: 300, Y: 250}, HandleSE},
		{geom.Point{X: 300, Y: 100}, HandleNE},
		{geom.Point{X: 100, Y: 250}, HandleSW},
		{geom.Point{X: 200, Y: 104}, HandleN},
		{geom.Point{X: 200, Y: 247}, HandleS},
		{geom.Point{X: 305, Y: 175}, HandleE},
		{geom.Point{X: 50, Y: 50}, HandleNone},
		{geom.Point{X: 400, Y: 175}, HandleNone},
	}
	for _, tc := range cases {
		if got := HitTest(tc.pt, r, 8); got != tc.want {
			t.Fatalf("expected %q at %+v, got %q", tc.want, tc.pt, got)
		}
	}
}

// TestHitTest_MarginScalesWithZoom verifies zooming in narrows the handle band.
func TestHitTest_MarginScalesWithZoom(t *testing.T) {
	r := geom.Rect{X: 100, Y: 100, W: 200, H: 150}
	pt := geom.Point{X: 106, Y: 175}
	if got := HitTest(pt, r, viewport.FrameMargin(8, 1)); got != HandleW {
		t.Fatalf("expected w at zoom 1, got %q", got)
	}
	if got := HitTest(pt, r, viewport.FrameMargin(8, 4)); got != HandleMove {
		t.Fatalf("expected move at zoom 4, got %q", got)
	}
}

// TestHandle_Cursor verifies the cursor table.
func TestHandle_Cursor(t *testing.T) {
	if HandleMove.Cursor() != "move" || HandleNW.Cursor() != "nw-resize" || HandleE.Cursor() != "e-resize" {
		t.Fatalf("unexpected cursor mapping")
	}
	if HandleNone.Cursor() != "crosshair" {
		t.Fatalf("expected crosshair, got %q", HandleNone.Cursor())
	}
}

// TestApply_HandleSemantics verifies move, edge and corner drags plus flipping.
func TestApply_HandleSemantics(t *testing.T) {
	orig := geom.Rect{X: 100, Y: 100, W: 200, H: 150}
	cases := []struct {
		h      Handle
		dx, dy int
		want   geom.Rect
	}{
		{HandleMove, 10, -5, geom.Rect{X: 110, Y: 95, W: 200, H: 150}},
		{HandleN, 0, 20, geom.Rect{X: 100, Y: 120, W: 200, H: 130}},
		{HandleS, 0, 20, geom.Rect{X: 100, Y: 100, W: 200, H: 170}},
		{HandleW, 30, 0, geom.Rect{X: 130, Y: 100, W: 170, H: 150}},
		{HandleE, -30, 0, geom.Rect{X: 100, Y: 100, W: 170, H: 150}},
		{HandleNW, 10, 10, geom.Rect{X: 110, Y: 110, W: 190, H: 140}},
		{HandleSE, 5, 5, geom.Rect{X: 100, Y: 100, W: 205, H: 155}},
		{HandleE, -250, 0, geom.Rect{X: 50, Y: 100, W: 50, H: 150}},
		{HandleE, -200, 0, geom.Rect{X: 100, Y: 100, W: 1, H: 150}},
		{HandleN, 0, 200, geom.Rect{X: 100, Y: 250, W: 200, H: 50}},
	}
	for _, tc := range cases {
		got := Apply(tc.h, orig, tc.dx, tc.dy)
		if got != tc.want {
			t.Fatalf("%s (%d,%d): expected %+v, got %+v", tc.h, tc.dx, tc.dy, tc.want, got)
		}
	}
}

// TestDraw_BelowThresholdNoMenu verifies a 2x2 drag opens no menu and leaves no overlay.
func TestDraw_BelowThresholdNoMenu(t *testing.T) {
	h := newHarness(t)
	h.drag(10, 10, 12, 12)
	if _, ok := h.eng.Menu(); ok {
		t.Fatalf("expected no menu")
	}
	if len(h.menus) != 0 {
		t.Fatalf("expected no menu events, got %v", h.menus)
	}
	if _, ok := h.eng.Mode().(None); !ok {
		t.Fatalf("expected None, got %T", h.eng.Mode())
	}
	if !h.overlayEmpty() {
		t.Fatalf("expected empty overlay")
	}
}

// TestDraw_NormalizesAndOpensMenu verifies reverse drags normalize and open the menu.
func TestDraw_NormalizesAndOpensMenu(t *testing.T) {
	h := newHarness(t)
	h.eng.PointerDown(h.at(300, 250))
	h.eng.PointerMove(h.at(200, 200))
	if _, ok := h.eng.Mode().(Drawing); !ok {
		t.Fatalf("expected Drawing, got %T", h.eng.Mode())
	}
	if info := h.eng.Info(); info.Mode != "Selecting" {
		t.Fatalf("expected Selecting label, got %q", info.Mode)
	}
	h.eng.PointerMove(h.at(100, 100))
	h.eng.PointerUp(h.at(100, 100))

	r, ok := h.eng.Menu()
	want := geom.Rect{X: 100, Y: 100, W: 200, H: 150}
	if !ok || r != want {
		t.Fatalf("expected menu for %+v, got %+v ok=%v", want, r, ok)
	}
	if len(h.menus) != 1 || !h.menus[0].Open || h.menus[0].ScreenX != 1100 {
		t.Fatalf("expected one open menu event at screen x 1100, got %+v", h.menus)
	}
	if h.overlayEmpty() {
		t.Fatalf("expected outline on overlay")
	}
}

// TestMenu_Cancel verifies cancel discards the rect and clears the overlay.
func TestMenu_Cancel(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	if err := h.eng.ChooseMenu(ChoiceCancel); err != nil {
		t.Fatalf("ChooseMenu failed: %v", err)
	}
	if _, ok := h.eng.Mode().(None); !ok {
		t.Fatalf("expected None, got %T", h.eng.Mode())
	}
	if !h.overlayEmpty() {
		t.Fatalf("expected empty overlay")
	}
	if info := h.eng.Info(); info.Rect != nil {
		t.Fatalf("expected no info rect, got %+v", info.Rect)
	}
}

// TestMenu_NoneOpen verifies choices without a menu are rejected.
func TestMenu_NoneOpen(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.ChooseMenu(ChoiceCrop); !errors.Is(err, ErrNoMenu) {
		t.Fatalf("expected ErrNoMenu, got %v", err)
	}
	h.drag(100, 100, 300, 250)
	if err := h.eng.ChooseMenu("zoom"); err == nil {
		t.Fatalf("expected error for unknown choice")
	}
	if _, ok := h.eng.Menu(); !ok {
		t.Fatalf("expected menu to stay open after unknown choice")
	}
}

// TestMenu_Crop verifies crop installs the region and reports it to the device.
func TestMenu_Crop(t *testing.T) {
	h := newHarness(t)
	h.drag(600, 400, 700, 500)
	if err := h.eng.ChooseMenu(ChoiceCrop); err != nil {
		t.Fatalf("ChooseMenu failed: %v", err)
	}
	want := geom.Rect{X: 600, Y: 400, W: 40, H: 80}
	c, ok := h.eng.Mode().(Crop)
	if !ok || c.Applied != want {
		t.Fatalf("expected Crop %+v, got %#v", want, h.eng.Mode())
	}
	if got := h.comp.CropRegion(); got == nil || *got != want {
		t.Fatalf("expected compositor crop %+v, got %+v", want, got)
	}
	call, ok := h.device.Next(time.Second)
	if !ok || call.Name != "SetCrop" || call.Rect != want {
		t.Fatalf("expected SetCrop %+v, got %+v ok=%v", want, call, ok)
	}
	if !h.overlayEmpty() {
		t.Fatalf("expected overlay cleared")
	}
	if info := h.eng.Info(); info.Mode != "Crop" || info.Rect == nil || *info.Rect != want {
		t.Fatalf("expected crop info, got %+v", info)
	}
}

// TestMenu_CropDeviceFailureKeepsCrop verifies a failing device leaves the software crop.
func TestMenu_CropDeviceFailureKeepsCrop(t *testing.T) {
	h := newHarness(t)
	h.device.SetErr(errors.New("unsupported"))
	h.drag(100, 100, 300, 250)
	if err := h.eng.ChooseMenu(ChoiceCrop); err != nil {
		t.Fatalf("ChooseMenu failed: %v", err)
	}
	if _, ok := h.device.Next(time.Second); !ok {
		t.Fatalf("expected device call")
	}
	if h.comp.CropRegion() == nil {
		t.Fatalf("expected crop kept after device failure")
	}
	if _, ok := h.eng.Mode().(Crop); !ok {
		t.Fatalf("expected Crop, got %T", h.eng.Mode())
	}
}

// TestCrop_ExternalAndOperatorReset verifies both reset paths clear the compositor crop.
func TestCrop_ExternalAndOperatorReset(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceCrop)
	h.device.Next(time.Second)
	h.eng.ExternalCropReset()
	if h.comp.CropRegion() != nil {
		t.Fatalf("expected crop cleared")
	}
	if _, ok := h.eng.Mode().(None); !ok {
		t.Fatalf("expected None, got %T", h.eng.Mode())
	}

	h.comp.Render(image.NewRGBA(image.Rect(0, 0, 640, 480)), 640, 480)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceCrop)
	h.device.Next(time.Second)
	h.eng.ResetCrop()
	if h.comp.CropRegion() != nil {
		t.Fatalf("expected crop cleared by operator reset")
	}
	call, ok := h.device.Next(time.Second)
	if !ok || call.Name != "ResetCrop" {
		t.Fatalf("expected ResetCrop call, got %+v ok=%v", call, ok)
	}
}

// TestCrop_ExternalResetAfterSelectingOverCrop verifies a crop left behind by a
// new selection is still cleared externally and badged while idle.
func TestCrop_ExternalResetAfterSelectingOverCrop(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceCrop)
	h.device.Next(time.Second)
	h.comp.Render(image.NewRGBA(image.Rect(0, 0, 640, 480)), 640, 480)

	h.drag(10, 10, 50, 40)
	if err := h.eng.ChooseMenu(ChoiceCancel); err != nil {
		t.Fatalf("ChooseMenu failed: %v", err)
	}
	want := geom.Rect{X: 100, Y: 100, W: 200, H: 150}
	if info := h.eng.Info(); info.Mode != "Crop" || info.Rect == nil || *info.Rect != want {
		t.Fatalf("expected Crop badge %+v, got %+v", want, info)
	}

	h.eng.ExternalCropReset()
	if r := h.comp.CropRegion(); r != nil {
		t.Fatalf("expected crop cleared, got %+v", r)
	}
	if _, ok := h.eng.Mode().(None); !ok {
		t.Fatalf("expected None, got %T", h.eng.Mode())
	}
	if info := h.eng.Info(); info.Mode != "" || info.Rect != nil {
		t.Fatalf("expected empty badge, got %+v", info)
	}
}

// TestCrop_ExternalResetKeepsSelection verifies a live selection survives the reset.
func TestCrop_ExternalResetKeepsSelection(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceCrop)
	h.device.Next(time.Second)
	h.comp.Render(image.NewRGBA(image.Rect(0, 0, 640, 480)), 640, 480)

	h.eng.PointerDown(h.at(10, 10))
	h.eng.ExternalCropReset()
	if h.comp.CropRegion() != nil {
		t.Fatalf("expected crop cleared")
	}
	if _, ok := h.eng.Mode().(Drawing); !ok {
		t.Fatalf("expected Drawing kept, got %T", h.eng.Mode())
	}
}

// TestCrop_DrawingInCroppedViewUsesFrameCoordinates verifies the crop origin is added.
func TestCrop_DrawingInCroppedViewUsesFrameCoordinates(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceCrop)
	h.device.Next(time.Second)
	h.comp.Render(image.NewRGBA(image.Rect(0, 0, 640, 480)), 640, 480)
	if w, hh := h.comp.Surface().Size(); w != 200 || hh != 150 {
		t.Fatalf("expected cropped surface 200x150, got %dx%d", w, hh)
	}
	h.drag(10, 10, 50, 40)
	r, ok := h.eng.Menu()
	want := geom.Rect{X: 110, Y: 110, W: 40, H: 30}
	if !ok || r != want {
		t.Fatalf("expected %+v in frame pixels, got %+v", want, r)
	}
}

// TestFocus_MaskAndDismiss verifies the mask task runs in Focus and stops on exit.
func TestFocus_MaskAndDismiss(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	if err := h.eng.ChooseMenu(ChoiceFocus); err != nil {
		t.Fatalf("ChooseMenu failed: %v", err)
	}
	if len(h.sched.tasks) != 1 {
		t.Fatalf("expected one repeating task, got %d", len(h.sched.tasks))
	}
	h.overlay.Clear()
	h.sched.tasks[0]()
	if a := h.overlay.Canvas().At(10, 10).A; a != 140 {
		t.Fatalf("expected dimmed pixel outside rect, got alpha %d", a)
	}
	if a := h.overlay.Canvas().At(200, 175).A; a != 0 {
		t.Fatalf("expected clear interior, got alpha %d", a)
	}

	h.eng.PointerDown(h.at(200, 175))
	if _, ok := h.eng.Mode().(None); !ok {
		t.Fatalf("expected None after click, got %T", h.eng.Mode())
	}
	if h.sched.canceled != 1 {
		t.Fatalf("expected focus task canceled once, got %d", h.sched.canceled)
	}
	if !h.overlayEmpty() {
		t.Fatalf("expected overlay cleared")
	}
}

// TestAdjust_DragResizes verifies an edge drag resizes without touching the crop.
func TestAdjust_DragResizes(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceAdjust)

	h.eng.PointerMove(h.at(300, 175))
	if h.eng.Cursor() != "e-resize" {
		t.Fatalf("expected hover cursor e-resize, got %q", h.eng.Cursor())
	}
	h.drag(300, 175, 350, 175)
	a, ok := h.eng.Mode().(Adjust)
	want := geom.Rect{X: 100, Y: 100, W: 250, H: 150}
	if !ok || a.Rect != want || a.Drag != nil {
		t.Fatalf("expected Adjust %+v, got %#v", want, h.eng.Mode())
	}
	if _, open := h.eng.Menu(); open {
		t.Fatalf("expected no menu after a real drag")
	}
	if h.comp.CropRegion() != nil {
		t.Fatalf("expected crop untouched during adjust")
	}
	if info := h.eng.Info(); info.Rect == nil || *info.Rect != want {
		t.Fatalf("expected info rect %+v, got %+v", want, info.Rect)
	}
}

// TestAdjust_ClickReopensMenu verifies a click without movement re-opens the menu.
func TestAdjust_ClickReopensMenu(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceAdjust)

	h.drag(200, 175, 201, 176)
	if _, open := h.eng.Menu(); !open {
		t.Fatalf("expected menu after click")
	}
	h.eng.PointerDown(h.at(5, 5))
	if _, open := h.eng.Menu(); open {
		t.Fatalf("expected menu dismissed")
	}
	if _, ok := h.eng.Mode().(Adjust); !ok {
		t.Fatalf("expected Adjust kept after dismiss, got %T", h.eng.Mode())
	}
	if h.overlayEmpty() {
		t.Fatalf("expected outline kept after dismiss")
	}
}

// TestAdjust_ContextReopensMenu verifies a secondary click re-opens the menu.
func TestAdjust_ContextReopensMenu(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceAdjust)
	in := h.at(500, 400)
	in.Button = 2
	h.eng.PointerDown(in)
	h.eng.Context(in)
	if r, open := h.eng.Menu(); !open || r.W != 200 {
		t.Fatalf("expected menu for adjust rect, got %+v open=%v", r, open)
	}
}

// TestAdjust_MissStartsDrawing verifies a press outside the rect starts a new selection.
func TestAdjust_MissStartsDrawing(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceAdjust)
	h.eng.PointerDown(h.at(500, 400))
	d, ok := h.eng.Mode().(Drawing)
	if !ok || d.Start != (geom.Point{X: 500, Y: 400}) {
		t.Fatalf("expected Drawing from (500,400), got %#v", h.eng.Mode())
	}
}

// TestDraw_Mirrored verifies mirroring is applied before the rect is built.
func TestDraw_Mirrored(t *testing.T) {
	h := newHarness(t)
	h.view.ToggleMirrorX()
	h.drag(10, 10, 110, 60)
	r, ok := h.eng.Menu()
	want := geom.Rect{X: 530, Y: 10, W: 100, H: 50}
	if !ok || r != want {
		t.Fatalf("expected %+v, got %+v", want, r)
	}
}

// TestClear_ResetsEverything verifies Clear leaves None with no menu and no overlay.
func TestClear_ResetsEverything(t *testing.T) {
	h := newHarness(t)
	h.drag(100, 100, 300, 250)
	_ = h.eng.ChooseMenu(ChoiceFocus)
	h.eng.Clear()
	if _, ok := h.eng.Mode().(None); !ok {
		t.Fatalf("expected None, got %T", h.eng.Mode())
	}
	if h.sched.canceled != 1 {
		t.Fatalf("expected focus canceled, got %d", h.sched.canceled)
	}
	if !h.overlayEmpty() || h.eng.Cursor() != DefaultCursor {
		t.Fatalf("expected clean overlay and default cursor")
	}
}
