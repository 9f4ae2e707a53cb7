// Package transport receives framed images from a streaming backend and
// drives the credit-based ack protocol.
package transport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/frudas24/camslice/internal/framewire"
)

// ErrNotConnected is returned when no frame connection is open.
var ErrNotConnected = errors.New("transport: not connected")

// Loop is the session loop the client runs on.
type Loop interface {
	Post(fn func())
	Call(fn func()) error
}

// Renderer receives decoded frames.
type Renderer interface {
	Render(img image.Image, width, height int)
}

// Dialer opens a frame connection to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (framewire.Conn, error)
}

// DecodeFunc turns an encoded payload into a bitmap.
type DecodeFunc func(payload []byte) (image.Image, error)

// Stats are the client counters.
type Stats struct {
	Connected    bool   `json:"connected"`
	LastFrameID  uint64 `json:"lastFrameId"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Frames       uint64 `json:"frames"`
	Acks         uint64 `json:"acks"`
	Malformed    uint64 `json:"malformed"`
	Dropped      uint64 `json:"dropped"`
	DecodeErrors uint64 `json:"decodeErrors"`
}

// Client is the frame transport for one viewing session. Connect is called
// off the loop; every other method must run on the loop.
type Client struct {
	loop   Loop
	dialer Dialer
	decode DecodeFunc

	conn     framewire.Conn
	target   Renderer
	gen      uint64
	decoding bool
	stats    Stats
}

// NewClient builds a client that posts its work onto loop.
func NewClient(loop Loop, dialer Dialer, decode DecodeFunc) (*Client, error) {
	if loop == nil || dialer == nil || decode == nil {
		return nil, fmt.Errorf("transport: loop, dialer and decoder are required")
	}
	return &Client{loop: loop, dialer: dialer, decode: decode}, nil
}

// Connect dials endpoint, sends the opening ack and streams frames into
// target. Any previous connection is closed first. It must not be called
// from the loop goroutine.
func (c *Client) Connect(ctx context.Context, endpoint string, target Renderer) error {
	if endpoint == "" {
		return fmt.Errorf("transport: empty endpoint")
	}
	if target == nil {
		return fmt.Errorf("transport: nil render target")
	}
	conn, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	var openErr error
	if err := c.loop.Call(func() { openErr = c.open(conn, target) }); err != nil {
		_ = conn.Close()
		return fmt.Errorf("transport: open: %w", err)
	}
	if openErr != nil {
		return openErr
	}
	log.Printf("transport: connected to %s", endpoint)
	return nil
}

// Disconnect closes the connection. A decode still in flight completes but
// its result is discarded.
func (c *Client) Disconnect() {
	if c.conn == nil && c.target == nil {
		return
	}
	c.closeConn()
	c.target = nil
	c.gen++
	c.decoding = false
	c.stats.Connected = false
}

// Connected reports whether a frame connection is open.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// Stats returns a copy of the counters.
func (c *Client) Stats() Stats {
	return c.stats
}

// open installs conn and sends the opening credit.
func (c *Client) open(conn framewire.Conn, target Renderer) error {
	c.closeConn()
	c.gen++
	gen := c.gen
	c.conn = conn
	c.target = target
	c.decoding = false
	c.stats = Stats{Connected: true}
	if err := c.sendAck(); err != nil {
		c.fail(gen, err)
		return fmt.Errorf("transport: initial ack: %w", err)
	}
	go c.readLoop(gen, conn)
	return nil
}

// readLoop forwards binary messages to the loop until the connection fails.
func (c *Client) readLoop(gen uint64, conn framewire.Conn) {
	for {
		mt, p, err := conn.ReadMessage()
		if err != nil {
			c.loop.Post(func() { c.fail(gen, err) })
			return
		}
		if mt != framewire.BinaryMessage {
			continue
		}
		c.loop.Post(func() { c.onMessage(gen, p) })
	}
}

// onMessage parses a frame and starts its decode if the slot is free.
func (c *Client) onMessage(gen uint64, msg []byte) {
	if gen != c.gen || c.conn == nil {
		return
	}
	f, err := framewire.Parse(msg)
	if err != nil {
		c.stats.Malformed++
		if debugEnabled() {
			log.Printf("transport: dropped malformed message len=%d", len(msg))
		}
		return
	}
	if c.decoding {
		c.stats.Dropped++
		if debugEnabled() {
			log.Printf("transport: dropped frame %d while decoding", f.ID)
		}
		return
	}
	c.stats.LastFrameID = f.ID
	c.stats.Width = int(f.Width)
	c.stats.Height = int(f.Height)
	c.decoding = true
	go func() {
		img, err := c.decode(f.Payload)
		c.loop.Post(func() { c.finish(gen, f.Header, img, err) })
	}()
}

// finish renders a decoded frame and returns the credit.
func (c *Client) finish(gen uint64, h framewire.Header, img image.Image, err error) {
	if gen != c.gen || c.conn == nil {
		return
	}
	c.decoding = false
	if err == nil {
		err = checkBounds(h, img)
	}
	switch {
	case err != nil:
		c.stats.DecodeErrors++
		log.Printf("transport: decode frame %d: %v", h.ID, err)
	case c.target != nil:
		c.stats.Frames++
		c.target.Render(img, int(h.Width), int(h.Height))
		if debugEnabled() {
			log.Printf("transport: frame %d %dx%d total=%d", h.ID, h.Width, h.Height, c.stats.Frames)
		}
	}
	if err := c.sendAck(); err != nil {
		c.fail(gen, err)
	}
}

// checkBounds rejects a header that claims more pixels than the bitmap holds.
func checkBounds(h framewire.Header, img image.Image) error {
	if img == nil {
		return errors.New("decoder returned no image")
	}
	b := img.Bounds()
	if uint64(h.Width) > uint64(b.Dx()) || uint64(h.Height) > uint64(b.Dy()) {
		return fmt.Errorf("frame claims %dx%d, bitmap is %dx%d", h.Width, h.Height, b.Dx(), b.Dy())
	}
	return nil
}

// sendAck writes one credit token.
func (c *Client) sendAck() error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(framewire.TextMessage, []byte(framewire.Ack)); err != nil {
		return fmt.Errorf("transport: send ack: %w", err)
	}
	c.stats.Acks++
	return nil
}

// fail tears down the connection if gen is still current.
func (c *Client) fail(gen uint64, err error) {
	if gen != c.gen || c.conn == nil {
		return
	}
	log.Printf("transport: connection closed: %v", err)
	c.closeConn()
	c.gen++
	c.decoding = false
	c.stats.Connected = false
}

// closeConn closes and forgets the frame connection.
func (c *Client) closeConn() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}
