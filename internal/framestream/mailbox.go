package framestream

import "sync"

// mailbox holds at most one pending message. A newer message replaces an
// older one that was never taken.
type mailbox struct {
	mu    sync.Mutex
	msg   []byte
	ready chan struct{}
}

// newMailbox returns an empty mailbox.
func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// put stores msg and reports whether an untaken message was overwritten.
func (m *mailbox) put(msg []byte) bool {
	m.mu.Lock()
	replaced := m.msg != nil
	m.msg = msg
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return replaced
}

// take waits for a message or for done to close.
func (m *mailbox) take(done <-chan struct{}) ([]byte, bool) {
	for {
		m.mu.Lock()
		msg := m.msg
		m.msg = nil
		m.mu.Unlock()
		if msg != nil {
			return msg, true
		}
		select {
		case <-m.ready:
		case <-done:
			return nil, false
		}
	}
}

// clear drops the pending message and reports whether there was one.
func (m *mailbox) clear() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := m.msg != nil
	m.msg = nil
	return had
}
