package rtcconn

import (
	"errors"
	"sync"
	"testing"

	"github.com/frudas24/camslice/internal/framewire"
)

// fakeChannel records sends.
type fakeChannel struct {
	mu     sync.Mutex
	texts  []string
	binary [][]byte
	closed int
}

// Send records a binary send.
func (f *fakeChannel) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binary = append(f.binary, data)
	return nil
}

// SendText records a text send.
func (f *fakeChannel) SendText(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, s)
	return nil
}

// Close counts closes.
func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// closerFunc adapts a func to io.Closer.
type closerFunc func() error

// Close calls f.
func (f closerFunc) Close() error { return f() }

// TestConn_ReadWrite verifies message types map onto text and binary sends.
func TestConn_ReadWrite(t *testing.T) {
	ch := &fakeChannel{}
	c := newConn(ch)

	if err := c.WriteMessage(framewire.TextMessage, []byte(framewire.Ack)); err != nil {
		t.Fatalf("write text failed: %v", err)
	}
	if err := c.WriteMessage(framewire.BinaryMessage, []byte{1, 2}); err != nil {
		t.Fatalf("write binary failed: %v", err)
	}
	if len(ch.texts) != 1 || ch.texts[0] != "ack" || len(ch.binary) != 1 {
		t.Fatalf("unexpected sends texts=%v binary=%v", ch.texts, ch.binary)
	}
	if err := c.WriteMessage(99, nil); err == nil {
		t.Fatalf("expected error for unknown type")
	}

	buf := []byte{9, 9, 9}
	c.deliver(false, buf)
	buf[0] = 0
	c.deliver(true, []byte("ack"))
	mt, p, err := c.ReadMessage()
	if err != nil || mt != framewire.BinaryMessage || p[0] != 9 {
		t.Fatalf("expected copied binary message, got mt=%d p=%v err=%v", mt, p, err)
	}
	mt, p, err = c.ReadMessage()
	if err != nil || !framewire.IsAck(mt, p) {
		t.Fatalf("expected ack, got mt=%d p=%q err=%v", mt, p, err)
	}
}

// TestConn_CloseReleasesOnce verifies Close unblocks readers and releases resources once.
func TestConn_CloseReleasesOnce(t *testing.T) {
	ch := &fakeChannel{}
	released := 0
	c := newConn(ch, closerFunc(func() error { released++; return nil }))

	errc := make(chan error, 1)
	go func() {
		_, _, err := c.ReadMessage()
		errc <- err
	}()
	_ = c.Close()
	_ = c.Close()
	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if ch.closed != 1 || released != 1 {
		t.Fatalf("expected single release, got channel=%d extra=%d", ch.closed, released)
	}
	if err := c.WriteMessage(framewire.TextMessage, []byte("ack")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on write, got %v", err)
	}
}

// TestConn_FailKeepsCause verifies the failure cause is reported to readers.
func TestConn_FailKeepsCause(t *testing.T) {
	cause := errors.New("ice failed")
	c := newConn(&fakeChannel{})
	c.fail(cause)
	<-c.Done()
	if _, _, err := c.ReadMessage(); !errors.Is(err, cause) {
		t.Fatalf("expected cause, got %v", err)
	}
}
