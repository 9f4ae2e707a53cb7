package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frudas24/camslice/internal/framewire"
)

// MaxFrameBytes bounds a single frame message.
const MaxFrameBytes = 32 << 20

// WebSocketDialer opens frame connections over a websocket.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebSocketDialer returns a dialer with a handshake timeout.
func NewWebSocketDialer(handshake time.Duration) *WebSocketDialer {
	return &WebSocketDialer{Dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
		ReadBufferSize:   64 << 10,
		WriteBufferSize:  4096,
	}}
}

// Dial opens a websocket to endpoint.
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (framewire.Conn, error) {
	u, err := framewire.NormalizeEndpoint(endpoint, framewire.FramesPath)
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake %s: %w (status %d)", u, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", u, err)
	}
	conn.SetReadLimit(MaxFrameBytes)
	return conn, nil
}
