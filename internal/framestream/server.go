// Package framestream is a development frame backend. It serves the binary
// frame protocol over websocket and WebRTC data channels, sending each
// viewer the latest frame only after that viewer's ack.
package framestream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/frudas24/camslice/internal/framewire"
	"github.com/frudas24/camslice/internal/signaling"
)

const (
	defaultPingInterval = 15 * time.Second
	defaultWriteWait    = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// API enables the WebRTC signaling endpoint when set.
	API          *webrtc.API
	Policy       signaling.ViewerPolicy
	PingInterval time.Duration
	WriteWait    time.Duration
}

// Stats are the server counters.
type Stats struct {
	Peers     int    `json:"peers"`
	LastID    uint64 `json:"lastId"`
	Published uint64 `json:"published"`
	Sent      uint64 `json:"sent"`
	Dropped   uint64 `json:"dropped"`
	Acks      uint64 `json:"acks"`
}

// Server fans frames out to connected viewers.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
	signal   *signaling.Server

	mu     sync.Mutex
	peers  map[*peer]struct{}
	closed bool

	peerID    atomic.Uint64
	frameID   atomic.Uint64
	published atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
	acks      atomic.Uint64
}

// NewServer creates a server with no viewers.
func NewServer(opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	s := &Server{
		opts:  opts,
		peers: make(map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	if opts.API != nil {
		s.signal = signaling.NewServer(opts.API, opts.Policy, s.AddPeer)
	}
	return s
}

// Publish sends an encoded frame to every viewer, numbering it with the
// next frame ID. It matches ffmpeg.FrameFunc.
func (s *Server) Publish(payload []byte, width, height int) {
	s.PublishFrame(framewire.Frame{
		Header:  framewire.Header{Width: uint32(width), Height: uint32(height), ID: s.frameID.Add(1)},
		Payload: payload,
	})
}

// PublishFrame stores f in each viewer's mailbox, replacing a frame the
// viewer has not been sent yet.
func (s *Server) PublishFrame(f framewire.Frame) {
	msg := framewire.Marshal(f)
	s.published.Add(1)
	for _, p := range s.snapshotPeers() {
		p.offer(msg)
	}
}

// AddPeer starts serving conn. It returns immediately.
func (s *Server) AddPeer(conn framewire.Conn) {
	s.addPeer(conn)
}

// Flush drops frames that are queued but not yet sent.
func (s *Server) Flush() {
	for _, p := range s.snapshotPeers() {
		p.box.clear()
	}
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	n := len(s.peers)
	s.mu.Unlock()
	return Stats{
		Peers:     n,
		LastID:    s.frameID.Load(),
		Published: s.published.Load(),
		Sent:      s.sent.Load(),
		Dropped:   s.dropped.Load(),
		Acks:      s.acks.Load(),
	}
}

// Handler returns the HTTP routes of the backend.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(framewire.FramesPath, s.ServeFrames)
	if s.signal != nil {
		mux.Handle(framewire.SignalPath, s.signal)
	}
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	return mux
}

// ServeFrames upgrades a websocket viewer and serves it until it leaves.
func (s *Server) ServeFrames(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := s.addPeer(newWSConn(ws, s.opts.PingInterval, s.opts.WriteWait))
	if p == nil {
		return
	}
	<-p.done
}

// Close disconnects every viewer and refuses new ones.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

// addPeer registers conn and starts its loops; nil after Close.
func (s *Server) addPeer(conn framewire.Conn) *peer {
	p := newPeer(s.peerID.Add(1), conn, s)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.peers[p] = struct{}{}
	s.mu.Unlock()

	log.Printf("framestream: peer %d connected", p.id)
	go p.readLoop()
	go p.writeLoop()
	return p
}

// removePeer forgets p.
func (s *Server) removePeer(p *peer) {
	s.mu.Lock()
	_, ok := s.peers[p]
	delete(s.peers, p)
	s.mu.Unlock()
	if ok {
		log.Printf("framestream: peer %d disconnected", p.id)
	}
}

// snapshotPeers copies the peer set.
func (s *Server) snapshotPeers() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
	}
	return out
}

// handleStats returns the counters as JSON.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Stats())
}

// handleHealth answers liveness probes.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
