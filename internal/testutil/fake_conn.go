package testutil

import (
	"errors"
	"sync"
	"time"

	"github.com/frudas24/camslice/internal/framewire"
)

// ErrConnClosed is returned by a closed FakeConn.
var ErrConnClosed = errors.New("testutil: conn closed")

// Message is one recorded websocket message.
type Message struct {
	Type int
	Data []byte
}

// FakeConn is an in-memory framewire.Conn. Tests push inbound messages with
// Push and observe outbound ones with NextWrite.
type FakeConn struct {
	in     chan Message
	out    chan Message
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes []Message
	err    error
}

// Ensure FakeConn implements the interface.
var _ framewire.Conn = (*FakeConn)(nil)

// NewFakeConn returns an open fake connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		in:     make(chan Message, 256),
		out:    make(chan Message, 1024),
		closed: make(chan struct{}),
	}
}

// ReadMessage blocks until a pushed message, a failure or Close.
func (c *FakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.in:
		return m.Type, m.Data, nil
	case <-c.closed:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		if err == nil {
			err = ErrConnClosed
		}
		return 0, nil, err
	}
}

// WriteMessage records an outbound message.
func (c *FakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	m := Message{Type: messageType, Data: append([]byte(nil), data...)}
	c.mu.Lock()
	c.writes = append(c.writes, m)
	c.mu.Unlock()
	select {
	case c.out <- m:
	default:
	}
	return nil
}

// Close unblocks the reader.
func (c *FakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Fail closes the connection so the reader sees err.
func (c *FakeConn) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.Close()
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Push queues an inbound message for the reader.
func (c *FakeConn) Push(messageType int, data []byte) {
	c.in <- Message{Type: messageType, Data: data}
}

// Writes returns every outbound message so far.
func (c *FakeConn) Writes() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.writes...)
}

// NextWrite waits up to timeout for the next outbound message.
func (c *FakeConn) NextWrite(timeout time.Duration) (Message, bool) {
	select {
	case m := <-c.out:
		return m, true
	case <-time.After(timeout):
		return Message{}, false
	}
}
