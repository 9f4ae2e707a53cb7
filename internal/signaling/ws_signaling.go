package signaling

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/frudas24/camslice/internal/framewire"
	"github.com/frudas24/camslice/internal/transport/rtcconn"
)

const writeWait = 2 * time.Second

// errInactive is returned when writing to a viewer that was replaced.
var errInactive = errors.New("viewer no longer active")

// ViewerPolicy controls how additional viewers are handled.
type ViewerPolicy int

const (
	// ViewerReject rejects new connections when one is active.
	ViewerReject ViewerPolicy = iota
	// ViewerReplace closes the active connection when a new one arrives.
	ViewerReplace
)

// viewer is one signaling socket and the peer negotiated over it.
type viewer struct {
	ws      *websocket.Conn
	peer    *webrtc.PeerConnection
	writeMu sync.Mutex
	once    sync.Once
}

// send writes msg with a deadline.
func (v *viewer) send(msg Message) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	_ = v.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return v.ws.WriteJSON(msg)
}

// close tears down the peer and the socket.
func (v *viewer) close() {
	v.once.Do(func() {
		if v.peer != nil {
			_ = v.peer.Close()
		}
		_ = v.ws.Close()
	})
}

// Server answers data channel offers over WebSocket and hands each opened
// channel to onConn. The peer lives as long as its signaling socket.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	api      *webrtc.API
	policy   ViewerPolicy
	onConn   func(framewire.Conn)
	active   *viewer
}

// NewServer creates a signaling server with the chosen viewer policy.
func NewServer(api *webrtc.API, policy ViewerPolicy, onConn func(framewire.Conn)) *Server {
	return &Server{
		api:    api,
		policy: policy,
		onConn: onConn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the offer/answer exchange.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	peer, err := s.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		log.Printf("signaling: new peer: %v", err)
		_ = ws.Close()
		return
	}
	v := &viewer{ws: ws, peer: peer}
	if err := s.register(v); err != nil {
		_ = peer.Close()
		rejectConn(ws, err.Error())
		return
	}
	defer s.release(v)

	peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		candidate := c.ToJSON()
		_ = s.sendTo(v, Message{T: "ice", Candidate: &candidate})
	})
	peer.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != DataChannelLabel {
			return
		}
		dc.OnOpen(func() {
			if s.onConn != nil {
				s.onConn(rtcconn.Wrap(dc, peer))
			}
		})
	})

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.handleMessage(v, msg); err != nil {
			_ = s.sendTo(v, Message{T: "error", Error: err.Error()})
			return
		}
	}
}

// register makes v the active viewer, applying the viewer policy.
func (s *Server) register(v *viewer) error {
	s.mu.Lock()
	prev := s.active
	if prev != nil && s.policy != ViewerReplace {
		s.mu.Unlock()
		return fmt.Errorf("viewer already connected")
	}
	s.active = v
	s.mu.Unlock()
	if prev != nil {
		prev.close()
	}
	return nil
}

// release forgets v if it is still active and closes it.
func (s *Server) release(v *viewer) {
	s.mu.Lock()
	if s.active == v {
		s.active = nil
	}
	s.mu.Unlock()
	v.close()
}

// rejectConn sends a policy violation close and closes the socket.
func rejectConn(ws *websocket.Conn, reason string) {
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	_ = ws.Close()
}

// handleMessage dispatches signaling messages.
func (s *Server) handleMessage(v *viewer, msg Message) error {
	switch msg.T {
	case "offer":
		return s.handleOffer(v, msg.SDP)
	case "ice":
		if msg.Candidate == nil {
			return nil
		}
		return v.peer.AddICECandidate(*msg.Candidate)
	default:
		return nil
	}
}

// handleOffer applies an SDP offer and replies with a complete answer.
func (s *Server) handleOffer(v *viewer, sdp string) error {
	if sdp == "" {
		return fmt.Errorf("empty offer")
	}
	peer := v.peer
	if err := peer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	<-gathered
	local := peer.LocalDescription()
	if local == nil {
		return fmt.Errorf("missing local description")
	}
	return s.sendTo(v, Message{T: "answer", SDP: local.SDP})
}

// sendTo writes a message to v while it is the active viewer.
func (s *Server) sendTo(v *viewer, msg Message) error {
	s.mu.Lock()
	active := s.active == v
	s.mu.Unlock()
	if !active {
		return errInactive
	}
	return v.send(msg)
}
