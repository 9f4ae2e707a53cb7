// Package selection implements the region-of-interest state machine driven
// by pointer input over the display surface.
package selection

import "github.com/frudas24/camslice/internal/geom"

// Mode is the current selection state. Exactly one of None, Drawing, Adjust,
// Focus or Crop.
type Mode interface {
	// Label returns the badge text for the mode, empty for None.
	Label() string
	isMode()
}

// None is the idle state.
type None struct{}

// Drawing is an in-progress rubber-band selection.
type Drawing struct {
	Start geom.Point
	Rect  geom.Rect
}

// Adjust holds a rectangle that can be moved or resized through its handles.
type Adjust struct {
	Rect geom.Rect
	Drag *Drag
}

// Drag is an active handle drag inside Adjust.
type Drag struct {
	Handle    Handle
	Start     geom.Point
	StartRect geom.Rect
	Moved     bool
}

// Focus dims everything outside Rect.
type Focus struct {
	Rect geom.Rect
}

// Crop records the region installed as the compositor crop.
type Crop struct {
	Applied geom.Rect
}

// Label implements Mode.
func (None) Label() string { return "" }

// Label implements Mode.
func (Drawing) Label() string { return "Selecting" }

// Label implements Mode.
func (Adjust) Label() string { return "Adjust" }

// Label implements Mode.
func (Focus) Label() string { return "Focus" }

// Label implements Mode.
func (Crop) Label() string { return "Crop" }

// isMode seals Mode.
func (None) isMode() {}

// isMode seals Mode.
func (Drawing) isMode() {}

// isMode seals Mode.
func (Adjust) isMode() {}

// isMode seals Mode.
func (Focus) isMode() {}

// isMode seals Mode.
func (Crop) isMode() {}

// Choice is a context-menu entry.
type Choice string

const (
	ChoiceAdjust Choice = "adjust"
	ChoiceFocus  Choice = "focus"
	ChoiceCrop   Choice = "crop"
	ChoiceCancel Choice = "cancel"
)

// Menu describes a pending context menu.
type Menu struct {
	Open    bool      `json:"open"`
	ScreenX float64   `json:"screenX"`
	ScreenY float64   `json:"screenY"`
	Rect    geom.Rect `json:"rect"`
}

// Info is what the on-screen badges show.
type Info struct {
	Mode string     `json:"mode,omitempty"`
	Rect *geom.Rect `json:"rect,omitempty"`
}
