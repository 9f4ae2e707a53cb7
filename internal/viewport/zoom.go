// Package viewport models zoom/mirror state and maps pointer coordinates
// into surface pixels.
package viewport

import "math"

const (
	// MinZoom is the smallest allowed zoom factor.
	MinZoom = 0.1
	// MaxZoom is the largest allowed zoom factor.
	MaxZoom = 10.0
	// ButtonStep is the multiplicative step of the zoom buttons.
	ButtonStep = 1.25
	// WheelStep is the fractional step of one wheel notch.
	WheelStep = 0.1
)

// State is the zoom factor plus independent mirror flags.
type State struct {
	Zoom    float64 `json:"zoom"`
	MirrorX bool    `json:"mirrorX"`
	MirrorY bool    `json:"mirrorY"`
}

// Controller drives the zoom level from buttons, wheel and pinch input.
type Controller struct {
	state     State
	pinching  bool
	pinchDist float64
	pinchZoom float64
}

// NewController returns a controller at zoom 1.0 with mirroring off.
func NewController() *Controller {
	return &Controller{state: State{Zoom: 1}}
}

// State returns the current zoom/mirror state.
func (c *Controller) State() State {
	return c.state
}

// Zoom returns the current zoom factor.
func (c *Controller) Zoom() float64 {
	return c.state.Zoom
}

// ZoomIn multiplies the zoom by ButtonStep.
func (c *Controller) ZoomIn() float64 {
	return c.SetZoom(c.state.Zoom * ButtonStep)
}

// ZoomOut divides the zoom by ButtonStep.
func (c *Controller) ZoomOut() float64 {
	return c.SetZoom(c.state.Zoom / ButtonStep)
}

// ZoomFit resets the zoom to 1.0.
func (c *Controller) ZoomFit() float64 {
	return c.SetZoom(1)
}

// SetZoom sets a clamped zoom factor. Non-finite values are ignored.
func (c *Controller) SetZoom(z float64) float64 {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return c.state.Zoom
	}
	c.state.Zoom = ClampZoom(z)
	return c.state.Zoom
}

// Wheel applies one wheel notch: scrolling down zooms out, up zooms in.
func (c *Controller) Wheel(deltaY float64) float64 {
	factor := 1 + sign(deltaY)*-WheelStep
	return c.SetZoom(c.state.Zoom * factor)
}

// PinchStart records the initial finger distance and zoom.
func (c *Controller) PinchStart(distance float64) {
	if !(distance > 0) || math.IsInf(distance, 0) {
		c.pinching = false
		return
	}
	c.pinching = true
	c.pinchDist = distance
	c.pinchZoom = c.state.Zoom
}

// PinchMove scales the zoom recorded at PinchStart by the distance ratio.
func (c *Controller) PinchMove(distance float64) float64 {
	if !c.pinching || math.IsNaN(distance) || distance < 0 {
		return c.state.Zoom
	}
	return c.SetZoom(c.pinchZoom * (distance / c.pinchDist))
}

// PinchEnd ends the current pinch gesture.
func (c *Controller) PinchEnd() {
	c.pinching = false
	c.pinchDist = 0
}

// ToggleMirrorX flips horizontal mirroring.
func (c *Controller) ToggleMirrorX() bool {
	c.state.MirrorX = !c.state.MirrorX
	return c.state.MirrorX
}

// ToggleMirrorY flips vertical mirroring.
func (c *Controller) ToggleMirrorY() bool {
	c.state.MirrorY = !c.state.MirrorY
	return c.state.MirrorY
}

// ClampZoom bounds z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// sign returns -1, 0 or 1 matching the sign of v.
func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
