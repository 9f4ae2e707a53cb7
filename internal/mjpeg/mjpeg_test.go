package mjpeg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"sync"
	"testing"
	"time"
)

// threadSafeRecorder is a minimal http.ResponseWriter + http.Flusher that is safe to use across goroutines.
type threadSafeRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	status int
}

// Header returns the response headers.
func (r *threadSafeRecorder) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.header == nil {
		r.header = make(http.Header)
	}
	return r.header
}

// Write appends bytes to the response body.
func (r *threadSafeRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.buf.Write(p)
}

// WriteHeader sets the HTTP status code.
func (r *threadSafeRecorder) WriteHeader(statusCode int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = statusCode
}

// Flush implements http.Flusher.
func (r *threadSafeRecorder) Flush() {}

// bodyString returns the current body as a string.
func (r *threadSafeRecorder) bodyString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// bodyBytes returns a copy of the current body as bytes.
func (r *threadSafeRecorder) bodyBytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf.Bytes()...)
}

// solidJPEG encodes a 1x1 image of the given RGB color.
func solidJPEG(t *testing.T, r, g, b byte) []byte {
	t.Helper()
	jpg, err := EncodeImage(RGBImage([]byte{r, g, b}, 1, 1), 60)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return jpg
}

// TestRGBImage verifies packed RGB bytes land in the right pixels.
func TestRGBImage(t *testing.T) {
	img := RGBImage([]byte{1, 2, 3, 4, 5, 6}, 2, 2)
	if got := img.RGBAAt(1, 0); got != (color.RGBA{4, 5, 6, 255}) {
		t.Fatalf("expected {4 5 6 255}, got %v", got)
	}
	if got := img.RGBAAt(0, 1); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("expected opaque black for missing data, got %v", got)
	}
}

// TestEncodeImage verifies the output decodes back to the same size.
func TestEncodeImage(t *testing.T) {
	jpg, err := EncodeImage(image.NewRGBA(image.Rect(0, 0, 32, 16)), 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(jpg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 16 {
		t.Fatalf("expected 32x16, got %dx%d", cfg.Width, cfg.Height)
	}
}

// TestStreamHandlerWritesFrame verifies the handler writes a multipart part for the latest frame.
func TestStreamHandlerWritesFrame(t *testing.T) {
	t.Parallel()

	s := NewStream(0)
	jpg := solidJPEG(t, 0, 255, 0)
	s.Publish(jpg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example/mjpeg/view", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	rec := &threadSafeRecorder{}
	done := make(chan struct{})
	go func() {
		s.Handler(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(500 * time.Millisecond)
	for !bytes.Contains(rec.bodyBytes(), jpg) {
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatalf("timed out waiting for mjpeg part, body=%q", rec.bodyString())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary="+boundary {
		t.Fatalf("unexpected content-type: %q", ct)
	}
	body := rec.bodyBytes()
	if !bytes.Contains(body, []byte("--"+boundary+"\r\nContent-Type: image/jpeg\r\n")) {
		t.Fatalf("expected jpeg part header, body=%q", rec.bodyString())
	}
	if !bytes.Contains(body, []byte("Content-Length:")) {
		t.Fatalf("expected content length header, body=%q", rec.bodyString())
	}
}

// TestStreamPublishThrottle verifies a throttled publish updates the latest frame without broadcasting.
func TestStreamPublishThrottle(t *testing.T) {
	t.Parallel()

	s := NewStream(time.Hour)
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	jpgA := solidJPEG(t, 0, 0, 255)
	jpgB := solidJPEG(t, 255, 255, 0)

	s.Publish(jpgA)
	select {
	case got := <-ch:
		if !bytes.Equal(got, jpgA) {
			t.Fatalf("expected first publish to broadcast jpgA")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for first publish")
	}

	s.Publish(jpgB)
	select {
	case <-ch:
		t.Fatal("expected throttled publish to not broadcast immediately")
	case <-time.After(50 * time.Millisecond):
	}
	if !bytes.Equal(s.Latest(), jpgB) {
		t.Fatal("expected latest frame to update even when throttled")
	}
}

// TestStreamPublishConcurrent churns publishers and subscribers for the race detector.
func TestStreamPublishConcurrent(t *testing.T) {
	t.Parallel()

	s := NewStream(0)
	jpg := solidJPEG(t, 10, 20, 30)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.Publish(jpg)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ch := s.subscribe()
				select {
				case <-ch:
				default:
				}
				s.unsubscribe(ch)
			}
		}()
	}
	wg.Wait()
	if n := s.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

// TestPublisher_SkipsNilSource verifies nothing is published before a frame exists.
func TestPublisher_SkipsNilSource(t *testing.T) {
	s := NewStream(0)
	p := NewPublisher(s, func() image.Image { return nil }, 0, 70)
	if p.PublishOnce() || s.Latest() != nil {
		t.Fatalf("expected nothing published")
	}
}

// TestPublisher_RunPublishesForSubscribers verifies the ticker feeds a subscribed client.
func TestPublisher_RunPublishesForSubscribers(t *testing.T) {
	s := NewStream(0)
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	p := NewPublisher(s, func() image.Image { return img }, 5*time.Millisecond, 70)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case jpg := <-ch:
		if _, err := jpeg.DecodeConfig(bytes.NewReader(jpg)); err != nil {
			t.Fatalf("expected jpeg, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published frame")
	}
}
