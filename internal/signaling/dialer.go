package signaling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/frudas24/camslice/internal/framewire"
	"github.com/frudas24/camslice/internal/transport/rtcconn"
)

// defaultNegotiation bounds the offer/answer exchange when ctx has no deadline.
const defaultNegotiation = 10 * time.Second

// Dialer opens frame connections over a WebRTC data channel. It offers a
// single ordered channel, waits for ICE gathering and sends the full SDP,
// so no candidates are trickled. The signaling socket stays open for the
// lifetime of the returned connection.
type Dialer struct {
	API    *webrtc.API
	Config webrtc.Configuration
	WS     *websocket.Dialer
}

// Dial negotiates a data channel through the signaling endpoint.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (framewire.Conn, error) {
	u, err := framewire.NormalizeEndpoint(endpoint, framewire.SignalPath)
	if err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultNegotiation)
		defer cancel()
	}
	api := d.API
	if api == nil {
		if api, err = rtcconn.NewAPI(); err != nil {
			return nil, err
		}
	}

	peer, err := api.NewPeerConnection(d.Config)
	if err != nil {
		return nil, fmt.Errorf("new peer: %w", err)
	}
	ordered := true
	dc, err := peer.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		_ = peer.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	opened := make(chan struct{})
	var openOnce sync.Once
	dc.OnOpen(func() { openOnce.Do(func() { close(opened) }) })

	wsd := d.WS
	if wsd == nil {
		wsd = websocket.DefaultDialer
	}
	ws, _, err := wsd.DialContext(ctx, u, nil)
	if err != nil {
		_ = peer.Close()
		return nil, fmt.Errorf("signaling dial %s: %w", u, err)
	}
	conn := rtcconn.Wrap(dc, peer, ws)

	if err := negotiate(ctx, peer, ws); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go drain(ws)

	select {
	case <-opened:
		return conn, nil
	case <-conn.Done():
		return nil, fmt.Errorf("data channel closed before open")
	case <-ctx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("wait for data channel: %w", ctx.Err())
	}
}

// negotiate sends the offer and applies the answer.
func negotiate(ctx context.Context, peer *webrtc.PeerConnection, ws *websocket.Conn) error {
	offer, err := peer.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return fmt.Errorf("ice gathering: %w", ctx.Err())
	}
	local := peer.LocalDescription()
	if local == nil {
		return fmt.Errorf("missing local description")
	}
	if err := ws.WriteJSON(Message{T: "offer", SDP: local.SDP}); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	deadline, _ := ctx.Deadline()
	_ = ws.SetReadDeadline(deadline)
	defer func() { _ = ws.SetReadDeadline(time.Time{}) }()
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read answer: %w", err)
		}
		switch msg.T {
		case "answer":
			if err := peer.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer,
				SDP:  msg.SDP,
			}); err != nil {
				return fmt.Errorf("set remote description: %w", err)
			}
			return nil
		case "error":
			return fmt.Errorf("signaling: %s", msg.Error)
		}
	}
}

// drain keeps control frames flowing on the signaling socket.
func drain(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
