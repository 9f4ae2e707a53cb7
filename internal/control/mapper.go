package control

import (
	"github.com/frudas24/camslice/internal/selection"
	"github.com/frudas24/camslice/internal/viewport"
)

// InputFromMessage builds a selection input from a pointer message. The
// position is clamped to the displayed element so a drag released outside
// it ends on the nearest edge.
func InputFromMessage(msg Message) selection.Input {
	return selection.Input{
		Pointer: viewport.Pointer{
			X:     clampSpan(msg.X, msg.ViewW),
			Y:     clampSpan(msg.Y, msg.ViewH),
			ViewW: msg.ViewW,
			ViewH: msg.ViewH,
		},
		Button:  msg.Button,
		ScreenX: msg.ScreenX,
		ScreenY: msg.ScreenY,
	}
}

// clampSpan bounds v to [0..span]. A non-positive span leaves v alone so the
// engine can reject the event.
func clampSpan(v, span float64) float64 {
	if !(span > 0) {
		return v
	}
	if v < 0 {
		return 0
	}
	if v > span {
		return span
	}
	return v
}
