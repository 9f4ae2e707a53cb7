package control

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/frudas24/camslice/internal/selection"
	"github.com/frudas24/camslice/internal/session"
	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// ErrNoSession is reported when input arrives with no stream running.
var ErrNoSession = errors.New("no active stream")

// SessionFunc returns the active viewing session, or nil.
type SessionFunc func() *session.Session

// Server handles websocket control input.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	current  SessionFunc
	gestures *GestureState
	conn     *websocket.Conn

	writeMu sync.Mutex
}

// NewServer creates a control websocket server that drives the session
// returned by current.
func NewServer(current SessionFunc) *Server {
	return &Server{
		current:  current,
		gestures: NewGestureState(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and processes control messages.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := s.acceptConn(conn); err != nil {
		s.rejectConn(conn, err.Error())
		return
	}
	defer s.cleanupConn(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		reply, err := s.handleMessage(msg)
		if err != nil {
			reply = &Reply{T: ReplyError, Error: err.Error()}
		}
		if reply == nil {
			continue
		}
		if err := s.send(conn, reply); err != nil {
			return
		}
	}
}

// Push forwards a session event to the active control connection. It is
// called from the session loop.
func (s *Server) Push(ev session.Event) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := s.send(conn, ev); err != nil {
		log.Printf("control: push %s failed: %v", ev.T, err)
	}
}

// acceptConn ensures only one active control connection exists.
func (s *Server) acceptConn(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return fmt.Errorf("control connection already active")
	}
	s.conn = conn
	s.gestures = NewGestureState()
	return nil
}

// rejectConn closes a connection that lost the single-connection race.
func (s *Server) rejectConn(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = conn.Close()
}

// cleanupConn clears the active connection when closed.
func (s *Server) cleanupConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// send writes one JSON message with a deadline.
func (s *Server) send(conn *websocket.Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// handleMessage dispatches a single control message.
func (s *Server) handleMessage(msg Message) (*Reply, error) {
	sess := s.current()
	if sess == nil {
		return nil, ErrNoSession
	}

	switch msg.T {
	case MsgDown:
		return nil, s.handlePointerDown(sess, msg)
	case MsgMove:
		return nil, s.handlePointerMove(sess, msg)
	case MsgUp:
		return nil, s.handlePointerUp(sess, msg)
	case MsgContext:
		return nil, sess.Context(InputFromMessage(msg))
	case MsgWheel:
		return nil, sess.Wheel(msg.DeltaY)
	case MsgPinchStart:
		return nil, sess.PinchStart(msg.Distance)
	case MsgPinchMove:
		return nil, sess.PinchMove(msg.Distance)
	case MsgPinchEnd:
		return nil, sess.PinchEnd()
	case MsgMenu:
		return nil, sess.ChooseMenu(selection.Choice(msg.Choice))
	case MsgZoomIn:
		return nil, sess.ZoomIn()
	case MsgZoomOut:
		return nil, sess.ZoomOut()
	case MsgZoomFit:
		return nil, sess.ZoomFit()
	case MsgSetZoom:
		return nil, sess.SetZoom(msg.Zoom)
	case MsgMirrorX:
		return nil, sess.ToggleMirrorX()
	case MsgMirrorY:
		return nil, sess.ToggleMirrorY()
	case MsgResetCrop:
		return nil, sess.ResetCrop()
	case MsgCropCleared:
		return nil, sess.ExternalCropReset()
	case MsgClear:
		return nil, sess.ClearSelection()
	case MsgState:
		snap, err := sess.Snapshot()
		if err != nil {
			return nil, err
		}
		return &Reply{T: ReplyState, State: &snap}, nil
	default:
		return nil, nil
	}
}

// handlePointerDown handles pointer down events.
func (s *Server) handlePointerDown(sess *session.Session, msg Message) error {
	if msg.Button != 0 {
		return nil
	}
	return s.applyGesture(sess, s.gestures.HandleDown(msg.ID, msg.X, msg.Y), msg, sess.PointerDown)
}

// handlePointerMove handles pointer move events.
func (s *Server) handlePointerMove(sess *session.Session, msg Message) error {
	return s.applyGesture(sess, s.gestures.HandleMove(msg.ID, msg.X, msg.Y), msg, sess.PointerMove)
}

// handlePointerUp handles pointer up events.
func (s *Server) handlePointerUp(sess *session.Session, msg Message) error {
	if msg.Button != 0 {
		return nil
	}
	return s.applyGesture(sess, s.gestures.HandleUp(msg.ID), msg, sess.PointerUp)
}

// applyGesture routes a classified pointer event.
func (s *Server) applyGesture(sess *session.Session, g Gesture, msg Message, pointer func(selection.Input) error) error {
	switch g.Kind {
	case GesturePointer:
		return pointer(InputFromMessage(msg))
	case GesturePinchStart:
		return sess.PinchStart(g.Distance)
	case GesturePinchMove:
		return sess.PinchMove(g.Distance)
	case GesturePinchEnd:
		return sess.PinchEnd()
	default:
		return nil
	}
}
