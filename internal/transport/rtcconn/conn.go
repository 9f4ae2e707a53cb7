package rtcconn

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/frudas24/camslice/internal/framewire"
)

// ErrClosed is returned once the data channel is gone.
var ErrClosed = errors.New("rtcconn: closed")

// channel is the part of *webrtc.DataChannel the adapter needs.
type channel interface {
	Send(data []byte) error
	SendText(s string) error
	Close() error
}

type message struct {
	text bool
	data []byte
}

// Conn adapts a data channel to framewire.Conn.
type Conn struct {
	ch      channel
	closers []io.Closer
	msgs    chan message
	done    chan struct{}

	mu       sync.Mutex
	err      error
	shutOnce sync.Once
	relOnce  sync.Once
}

// Ensure Conn implements the interface.
var _ framewire.Conn = (*Conn)(nil)

// Wrap adapts an open data channel. The peer connection and any extra
// closers are released with the Conn.
func Wrap(dc *webrtc.DataChannel, peer *webrtc.PeerConnection, extra ...io.Closer) *Conn {
	closers := append([]io.Closer{peer}, extra...)
	c := newConn(dc, closers...)
	dc.OnMessage(func(m webrtc.DataChannelMessage) {
		c.deliver(m.IsString, m.Data)
	})
	dc.OnClose(func() {
		c.fail(ErrClosed)
	})
	peer.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			c.fail(fmt.Errorf("rtcconn: peer connection %s", s))
		}
	})
	return c
}

// newConn builds an adapter around ch.
func newConn(ch channel, closers ...io.Closer) *Conn {
	return &Conn{
		ch:      ch,
		closers: closers,
		msgs:    make(chan message, 16),
		done:    make(chan struct{}),
	}
}

// ReadMessage returns the next data channel message.
func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.msgs:
		if m.text {
			return framewire.TextMessage, m.data, nil
		}
		return framewire.BinaryMessage, m.data, nil
	case <-c.done:
		return 0, nil, c.closeErr()
	}
}

// WriteMessage sends text messages as strings and binary ones as bytes.
func (c *Conn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.done:
		return c.closeErr()
	default:
	}
	switch messageType {
	case framewire.TextMessage:
		return c.ch.SendText(string(data))
	case framewire.BinaryMessage:
		return c.ch.Send(data)
	default:
		return fmt.Errorf("rtcconn: unsupported message type %d", messageType)
	}
}

// Close closes the channel and releases the peer.
func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	c.release()
	return nil
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// deliver queues an inbound message, blocking while the reader is behind.
func (c *Conn) deliver(text bool, data []byte) {
	m := message{text: text, data: append([]byte(nil), data...)}
	select {
	case c.msgs <- m:
	case <-c.done:
	}
}

// fail ends the connection from a pion callback.
func (c *Conn) fail(err error) {
	c.shutdown(err)
	go c.release()
}

// shutdown records err once and wakes blocked readers.
func (c *Conn) shutdown(err error) {
	c.shutOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// release closes the data channel and the peer resources once.
func (c *Conn) release() {
	c.relOnce.Do(func() {
		_ = c.ch.Close()
		for _, cl := range c.closers {
			if cl != nil {
				_ = cl.Close()
			}
		}
	})
}

// closeErr returns the error that closed the connection.
func (c *Conn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}
