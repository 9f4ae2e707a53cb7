// Package session owns one viewing session: the event loop, the frame
// compositor, the selection engine and the transport client of one stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frudas24/camslice/internal/compositor"
	"github.com/frudas24/camslice/internal/eventloop"
	"github.com/frudas24/camslice/internal/geom"
	"github.com/frudas24/camslice/internal/selection"
	"github.com/frudas24/camslice/internal/transport"
	"github.com/frudas24/camslice/internal/viewport"
	"github.com/google/uuid"
)

// ErrStopped is returned by operations on a stopped session.
var ErrStopped = errors.New("session: stopped")

// Event types pushed to the control channel.
const (
	EventMenu   = "menu"
	EventCursor = "cursor"
)

// Event is a notification raised on the session loop.
type Event struct {
	T      string          `json:"t"`
	Menu   *selection.Menu `json:"menu,omitempty"`
	Cursor string          `json:"cursor,omitempty"`
}

// Deps are the collaborators of a session.
type Deps struct {
	Dialer       transport.Dialer
	Decode       transport.DecodeFunc
	Device       selection.CropReporter
	EdgeMargin   float64
	MinSize      int
	FocusRefresh time.Duration
	OnEvent      func(Event)
}

// Size is a width/height pair.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	ID        string          `json:"id"`
	Endpoint  string          `json:"endpoint"`
	StartedAt time.Time       `json:"startedAt"`
	Transport transport.Stats `json:"transport"`
	View      viewport.State  `json:"view"`
	Mode      string          `json:"mode"`
	Rect      *geom.Rect      `json:"rect,omitempty"`
	Crop      *geom.Rect      `json:"crop,omitempty"`
	Menu      *geom.Rect      `json:"menu,omitempty"`
	Cursor    string          `json:"cursor"`
	Surface   Size            `json:"surface"`
	Frame     Size            `json:"frame"`
}

// Session is one stream with its own loop. Methods are safe for concurrent
// use; state changes run on the loop.
type Session struct {
	id      string
	loop    *eventloop.Loop
	surface *compositor.Canvas
	overlay *selection.Overlay
	comp    *compositor.Compositor
	view    *viewport.Controller
	sel     *selection.Engine
	client  *transport.Client
	onEvent func(Event)

	mu        sync.Mutex
	endpoint  string
	startedAt time.Time
	stopOnce  sync.Once
	stopped   atomic.Bool
}

// New builds a session. It does not connect.
func New(deps Deps) (*Session, error) {
	if deps.Dialer == nil {
		return nil, fmt.Errorf("session: dialer is required")
	}
	if deps.Decode == nil {
		deps.Decode = compositor.Decode
	}

	s := &Session{
		id:      uuid.NewString(),
		loop:    eventloop.New(),
		surface: compositor.NewCanvas(),
		overlay: selection.NewOverlay(compositor.NewCanvas()),
		view:    viewport.NewController(),
		onEvent: deps.OnEvent,
	}
	s.comp = compositor.New(s.surface)

	sel, err := selection.New(s.comp, s.overlay, s.view, s.loop, selection.Options{
		EdgeMargin:   deps.EdgeMargin,
		MinSize:      deps.MinSize,
		FocusRefresh: deps.FocusRefresh,
		Device:       deps.Device,
		OnMenu: func(m selection.Menu) {
			s.emit(Event{T: EventMenu, Menu: &m})
		},
		OnCursor: func(c string) {
			s.emit(Event{T: EventCursor, Cursor: c})
		},
	})
	if err != nil {
		s.loop.Close()
		return nil, err
	}
	s.sel = sel
	s.comp.OnResize(sel.Resize)

	client, err := transport.NewClient(s.loop, deps.Dialer, deps.Decode)
	if err != nil {
		s.loop.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start connects to endpoint. It blocks until the first ack is sent or the
// dial fails.
func (s *Session) Start(ctx context.Context, endpoint string) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	if err := s.client.Connect(ctx, endpoint, s.comp); err != nil {
		if errors.Is(err, eventloop.ErrClosed) {
			return ErrStopped
		}
		return err
	}
	s.mu.Lock()
	s.endpoint = endpoint
	s.startedAt = time.Now()
	s.mu.Unlock()
	log.Printf("session: %s streaming from %s", s.id, endpoint)
	return nil
}

// Stop disconnects, clears the selection and closes the loop.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		_ = s.loop.Call(func() {
			s.client.Disconnect()
			s.sel.Clear()
		})
		s.loop.Close()
		log.Printf("session: %s stopped", s.id)
	})
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}

// PointerDown forwards a button press.
func (s *Session) PointerDown(in selection.Input) error {
	return s.exec(func() { s.sel.PointerDown(in) })
}

// PointerMove forwards pointer motion.
func (s *Session) PointerMove(in selection.Input) error {
	return s.exec(func() { s.sel.PointerMove(in) })
}

// PointerUp forwards a button release.
func (s *Session) PointerUp(in selection.Input) error {
	return s.exec(func() { s.sel.PointerUp(in) })
}

// Context forwards a context-menu request.
func (s *Session) Context(in selection.Input) error {
	return s.exec(func() { s.sel.Context(in) })
}

// ChooseMenu applies a menu choice.
func (s *Session) ChooseMenu(c selection.Choice) error {
	var err error
	if callErr := s.exec(func() { err = s.sel.ChooseMenu(c) }); callErr != nil {
		return callErr
	}
	return err
}

// ResetCrop returns to the full frame.
func (s *Session) ResetCrop() error {
	return s.exec(s.sel.ResetCrop)
}

// ExternalCropReset drops the crop after the device reset it on its own.
func (s *Session) ExternalCropReset() error {
	return s.exec(s.sel.ExternalCropReset)
}

// ClearSelection drops any selection in progress.
func (s *Session) ClearSelection() error {
	return s.exec(s.sel.Clear)
}

// Wheel applies one wheel event to the zoom.
func (s *Session) Wheel(deltaY float64) error {
	return s.exec(func() { s.view.Wheel(deltaY) })
}

// PinchStart begins a pinch gesture.
func (s *Session) PinchStart(distance float64) error {
	return s.exec(func() { s.view.PinchStart(distance) })
}

// PinchMove updates a pinch gesture.
func (s *Session) PinchMove(distance float64) error {
	return s.exec(func() { s.view.PinchMove(distance) })
}

// PinchEnd ends a pinch gesture.
func (s *Session) PinchEnd() error {
	return s.exec(s.view.PinchEnd)
}

// ZoomIn steps the zoom up.
func (s *Session) ZoomIn() error {
	return s.exec(func() { s.view.ZoomIn() })
}

// ZoomOut steps the zoom down.
func (s *Session) ZoomOut() error {
	return s.exec(func() { s.view.ZoomOut() })
}

// ZoomFit resets the zoom to 1.
func (s *Session) ZoomFit() error {
	return s.exec(func() { s.view.ZoomFit() })
}

// SetZoom sets an explicit zoom factor.
func (s *Session) SetZoom(z float64) error {
	return s.exec(func() { s.view.SetZoom(z) })
}

// ToggleMirrorX flips horizontal mirroring.
func (s *Session) ToggleMirrorX() error {
	return s.exec(func() { s.view.ToggleMirrorX() })
}

// ToggleMirrorY flips vertical mirroring.
func (s *Session) ToggleMirrorY() error {
	return s.exec(func() { s.view.ToggleMirrorY() })
}

// Snapshot returns the session state as seen from the loop.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.exec(func() {
		info := s.sel.Info()
		w, h := s.surface.Size()
		fw, fh := s.comp.FrameSize()
		snap = Snapshot{
			ID:        s.id,
			Transport: s.client.Stats(),
			View:      s.view.State(),
			Mode:      info.Mode,
			Rect:      info.Rect,
			Crop:      s.comp.CropRegion(),
			Cursor:    s.sel.Cursor(),
			Surface:   Size{W: w, H: h},
			Frame:     Size{W: fw, H: fh},
		}
		if r, ok := s.sel.Menu(); ok {
			snap.Menu = &r
		}
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	snap.Endpoint = s.endpoint
	snap.StartedAt = s.startedAt
	s.mu.Unlock()
	return snap, nil
}

// Composite returns the current frame with the selection overlay on top,
// or nil before the first frame.
func (s *Session) Composite() *image.RGBA {
	base := s.surface.Snapshot()
	if base == nil || base.Bounds().Empty() {
		return nil
	}
	return compositor.Compose(base, s.overlay.Canvas().Snapshot())
}

// exec runs fn on the loop and waits for it.
func (s *Session) exec(fn func()) error {
	if err := s.loop.Call(fn); err != nil {
		if errors.Is(err, eventloop.ErrClosed) {
			return ErrStopped
		}
		return err
	}
	return nil
}

// emit forwards an event to the subscriber, if any.
func (s *Session) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
