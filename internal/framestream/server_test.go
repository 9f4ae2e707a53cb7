package framestream

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frudas24/camslice/internal/compositor"
	"github.com/frudas24/camslice/internal/eventloop"
	"github.com/frudas24/camslice/internal/framewire"
	"github.com/frudas24/camslice/internal/testutil"
	"github.com/frudas24/camslice/internal/transport"
)

const wait = 2 * time.Second

// expectFrame waits for the next binary write and returns its header.
func expectFrame(t *testing.T, conn *testutil.FakeConn) framewire.Header {
	t.Helper()
	m, ok := conn.NextWrite(wait)
	if !ok {
		t.Fatalf("expected frame, got none")
	}
	if m.Type != framewire.BinaryMessage {
		t.Fatalf("expected binary frame, got type %d", m.Type)
	}
	h, err := framewire.ParseHeader(m.Data)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	return h
}

// expectNoWrite verifies nothing is sent for a while.
func expectNoWrite(t *testing.T, conn *testutil.FakeConn) {
	t.Helper()
	if m, ok := conn.NextWrite(50 * time.Millisecond); ok {
		t.Fatalf("expected no write, got type=%d len=%d", m.Type, len(m.Data))
	}
}

// ack sends one credit from the viewer.
func ack(conn *testutil.FakeConn) {
	conn.Push(framewire.TextMessage, []byte(framewire.Ack))
}

// waitPeers polls until the server has n peers.
func waitPeers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for s.Stats().Peers != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d peers, got %d", n, s.Stats().Peers)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// waitAcks polls until the server has counted n acks.
func waitAcks(t *testing.T, s *Server, n uint64) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for s.Stats().Acks < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d acks, got %d", n, s.Stats().Acks)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// TestServer_WaitsForFirstAck verifies nothing is sent before the opening credit.
func TestServer_WaitsForFirstAck(t *testing.T) {
	s := NewServer(Options{})
	defer s.Close()
	conn := testutil.NewFakeConn()
	s.AddPeer(conn)

	s.Publish([]byte("jpeg"), 4, 4)
	expectNoWrite(t, conn)

	ack(conn)
	h := expectFrame(t, conn)
	if h.ID != 1 || h.Width != 4 || h.Height != 4 {
		t.Fatalf("unexpected header %+v", h)
	}
}

// TestServer_OneFramePerAck verifies a busy viewer only ever gets the latest frame after its next ack.
func TestServer_OneFramePerAck(t *testing.T) {
	s := NewServer(Options{})
	defer s.Close()
	conn := testutil.NewFakeConn()
	s.AddPeer(conn)

	ack(conn)
	s.Publish([]byte("a"), 2, 2)
	if h := expectFrame(t, conn); h.ID != 1 {
		t.Fatalf("expected frame 1, got %d", h.ID)
	}

	for i := 0; i < 5; i++ {
		s.Publish([]byte("b"), 2, 2)
	}
	expectNoWrite(t, conn)

	ack(conn)
	if h := expectFrame(t, conn); h.ID != 6 {
		t.Fatalf("expected latest frame 6, got %d", h.ID)
	}
	expectNoWrite(t, conn)

	st := s.Stats()
	if st.Published != 6 || st.Sent != 2 || st.Dropped != 4 || st.Acks != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

// TestServer_Flush verifies queued frames are dropped.
func TestServer_Flush(t *testing.T) {
	s := NewServer(Options{})
	defer s.Close()
	conn := testutil.NewFakeConn()
	s.AddPeer(conn)

	s.Publish([]byte("a"), 2, 2)
	s.Flush()
	ack(conn)
	waitAcks(t, s, 1)
	expectNoWrite(t, conn)

	s.Publish([]byte("b"), 2, 2)
	if h := expectFrame(t, conn); h.ID != 2 {
		t.Fatalf("expected frame 2, got %d", h.ID)
	}
}

// TestServer_PeerLeaves verifies a failed connection is forgotten.
func TestServer_PeerLeaves(t *testing.T) {
	s := NewServer(Options{})
	defer s.Close()
	conn := testutil.NewFakeConn()
	s.AddPeer(conn)
	waitPeers(t, s, 1)

	conn.Fail(testutil.ErrConnClosed)
	waitPeers(t, s, 0)
	s.Publish([]byte("a"), 2, 2)
}

// TestServer_Close verifies viewers are closed and later ones refused.
func TestServer_Close(t *testing.T) {
	s := NewServer(Options{})
	conn := testutil.NewFakeConn()
	s.AddPeer(conn)
	waitPeers(t, s, 1)

	s.Close()
	if !conn.Closed() {
		t.Fatalf("expected viewer closed")
	}
	late := testutil.NewFakeConn()
	s.AddPeer(late)
	if !late.Closed() || s.Stats().Peers != 0 {
		t.Fatalf("expected late viewer refused")
	}
}

// TestHandler_HealthAndStats verifies the JSON endpoints.
func TestHandler_HealthAndStats(t *testing.T) {
	s := NewServer(Options{})
	defer s.Close()
	s.Publish([]byte("a"), 2, 2)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var st Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.Published != 1 || st.LastID != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	resp, err = http.Get(ts.URL + framewire.SignalPath)
	if err != nil {
		t.Fatalf("signal: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected signaling disabled without an API, got %d", resp.StatusCode)
	}
}

// TestWebSocket_EndToEnd streams the test pattern into a real transport client.
func TestWebSocket_EndToEnd(t *testing.T) {
	s := NewServer(Options{PingInterval: 50 * time.Millisecond})
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src, err := NewPatternSource(64, 48, 200, 80, s.Publish)
	if err != nil {
		t.Fatalf("NewPatternSource failed: %v", err)
	}
	go func() { _ = src.Run(ctx) }()

	loop := eventloop.New()
	defer loop.Close()
	comp := compositor.New(compositor.NewCanvas())
	client, err := transport.NewClient(loop, transport.NewWebSocketDialer(wait), compositor.Decode)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := client.Connect(ctx, ts.URL, comp); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer func() { _ = loop.Call(client.Disconnect) }()

	deadline := time.Now().Add(5 * time.Second)
	var st transport.Stats
	for {
		_ = loop.Call(func() { st = client.Stats() })
		if st.Frames >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for frames, got %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st.DecodeErrors != 0 || st.Malformed != 0 || st.Dropped != 0 {
		t.Fatalf("unexpected client stats %+v", st)
	}
	if w, h := comp.Surface().Size(); image.Pt(w, h) != image.Pt(64, 48) {
		t.Fatalf("expected 64x48 surface, got %dx%d", w, h)
	}
	if got := s.Stats(); got.Sent > got.Acks {
		t.Fatalf("expected sent <= acks, got %+v", got)
	}
}
