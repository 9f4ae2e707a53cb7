package framestream

import (
	"log"
	"sync"

	"github.com/frudas24/camslice/internal/framewire"
)

// peer is one viewer connection. It holds a single credit: a frame is sent
// only after an ack, and the next one only after the next ack.
type peer struct {
	id     uint64
	conn   framewire.Conn
	srv    *Server
	box    *mailbox
	credit chan struct{}
	done   chan struct{}
	once   sync.Once
}

// newPeer returns a peer for conn registered with srv.
func newPeer(id uint64, conn framewire.Conn, srv *Server) *peer {
	return &peer{
		id:     id,
		conn:   conn,
		srv:    srv,
		box:    newMailbox(),
		credit: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// readLoop turns acks into credit until the connection fails.
func (p *peer) readLoop() {
	defer p.close()
	for {
		typ, msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if !framewire.IsAck(typ, msg) {
			continue
		}
		p.srv.acks.Add(1)
		select {
		case p.credit <- struct{}{}:
		default:
		}
	}
}

// writeLoop waits for credit, then for a frame, then sends it.
func (p *peer) writeLoop() {
	defer p.close()
	for {
		select {
		case <-p.credit:
		case <-p.done:
			return
		}
		msg, ok := p.box.take(p.done)
		if !ok {
			return
		}
		if err := p.conn.WriteMessage(framewire.BinaryMessage, msg); err != nil {
			log.Printf("framestream: peer %d write failed: %v", p.id, err)
			return
		}
		p.srv.sent.Add(1)
	}
}

// offer queues msg for the peer, replacing any frame not yet sent.
func (p *peer) offer(msg []byte) {
	if p.box.put(msg) {
		p.srv.dropped.Add(1)
	}
}

// close tears the peer down once.
func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
		p.srv.removePeer(p)
	})
}
