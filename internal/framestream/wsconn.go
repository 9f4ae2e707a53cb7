package framestream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a server-side websocket to framewire.Conn with write
// deadlines and ping keepalive.
type wsConn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	done      chan struct{}
	once      sync.Once
}

// newWSConn starts the keepalive pinger. A peer that does not answer pings
// within two intervals fails its next read.
func newWSConn(ws *websocket.Conn, pingInterval, writeWait time.Duration) *wsConn {
	c := &wsConn{ws: ws, writeWait: writeWait, done: make(chan struct{})}
	pongWait := 2 * pingInterval
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.ping(pingInterval)
	return c
}

// ReadMessage reads the next message.
func (c *wsConn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

// WriteMessage writes one message with a deadline. Only the peer writer
// calls it.
func (c *wsConn) WriteMessage(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// Close stops the pinger and closes the socket.
func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.ws.Close()
}

// ping sends keepalive pings until Close.
func (c *wsConn) ping(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
