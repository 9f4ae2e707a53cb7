// Package control handles the viewer input protocol and gesture mapping.
package control

import "github.com/frudas24/camslice/internal/session"

// Inbound message types.
const (
	MsgDown        = "down"
	MsgMove        = "move"
	MsgUp          = "up"
	MsgContext     = "context"
	MsgWheel       = "wheel"
	MsgPinchStart  = "pinchStart"
	MsgPinchMove   = "pinchMove"
	MsgPinchEnd    = "pinchEnd"
	MsgMenu        = "menu"
	MsgZoomIn      = "zoomIn"
	MsgZoomOut     = "zoomOut"
	MsgZoomFit     = "zoomFit"
	MsgSetZoom     = "setZoom"
	MsgMirrorX     = "mirrorX"
	MsgMirrorY     = "mirrorY"
	MsgResetCrop   = "resetCrop"
	MsgCropCleared = "cropCleared"
	MsgClear       = "clear"
	MsgState       = "state"
)

// Outbound reply types. Session events use session.EventMenu and
// session.EventCursor.
const (
	ReplyState = "state"
	ReplyError = "error"
)

// Message is a control websocket payload from the viewer.
type Message struct {
	T        string  `json:"t"`
	ID       int     `json:"id,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	ViewW    float64 `json:"viewW,omitempty"`
	ViewH    float64 `json:"viewH,omitempty"`
	Button   int     `json:"button,omitempty"`
	ScreenX  float64 `json:"screenX,omitempty"`
	ScreenY  float64 `json:"screenY,omitempty"`
	DeltaY   float64 `json:"deltaY,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Choice   string  `json:"choice,omitempty"`
	Zoom     float64 `json:"zoom,omitempty"`
}

// Reply is a server-originated message that is not a session event.
type Reply struct {
	T     string            `json:"t"`
	Error string            `json:"error,omitempty"`
	State *session.Snapshot `json:"state,omitempty"`
}
