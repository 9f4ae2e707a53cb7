// Package mjpeg serves composited frames as a multipart JPEG stream.
package mjpeg

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	boundary       = "frame"
	defaultQuality = 70
	keepAlive      = time.Second
)

// Stream fans the latest JPEG out to every connected HTTP client. Slow
// clients skip frames; they never block Publish.
type Stream struct {
	mu          sync.RWMutex
	subs        map[chan []byte]struct{}
	last        []byte
	minInterval time.Duration
	lastPush    time.Time
}

// NewStream creates a stream that broadcasts at most once per minInterval.
func NewStream(minInterval time.Duration) *Stream {
	return &Stream{
		subs:        make(map[chan []byte]struct{}),
		minInterval: minInterval,
	}
}

// Subscribers returns the number of connected clients.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Publish stores jpg as the latest frame and broadcasts it unless the last
// broadcast is more recent than the minimum interval.
func (s *Stream) Publish(jpg []byte) {
	frame := append([]byte(nil), jpg...)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = frame
	if s.minInterval > 0 && now.Sub(s.lastPush) < s.minInterval {
		return
	}
	s.lastPush = now
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Latest returns a copy of the most recent frame, or nil.
func (s *Stream) Latest() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.last) == 0 {
		return nil
	}
	return append([]byte(nil), s.last...)
}

// Handler serves the multipart stream until the client goes away. The
// latest frame is repeated every second so idle streams stay alive.
func (s *Stream) Handler(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Connection", "keep-alive")
	h.Set("Pragma", "no-cache")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	keep := time.NewTicker(keepAlive)
	defer keep.Stop()

	for {
		var jpg []byte
		select {
		case <-r.Context().Done():
			return
		case jpg = <-ch:
		case <-keep.C:
			jpg = s.Latest()
		}
		if len(jpg) == 0 {
			continue
		}
		if err := writePart(w, jpg); err != nil {
			return
		}
		fl.Flush()
	}
}

// EncodeImage encodes img as a JPEG. Out-of-range qualities fall back to 70.
func EncodeImage(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("mjpeg: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// RGBImage wraps packed RGB24 bytes in an opaque RGBA image. Missing trailing
// pixels stay black.
func RGBImage(rgb []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	si := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			di := x * 4
			if si+2 < len(rgb) {
				row[di], row[di+1], row[di+2] = rgb[si], rgb[si+1], rgb[si+2]
			}
			row[di+3] = 0xff
			si += 3
		}
	}
	return img
}

// subscribe registers a client and primes it with the latest frame.
func (s *Stream) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if len(s.last) > 0 {
		ch <- s.last
	}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a client.
func (s *Stream) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// writePart writes one JPEG part of the multipart response.
func writePart(w http.ResponseWriter, jpg []byte) error {
	header := "\r\n--" + boundary + "\r\n" +
		"Content-Type: image/jpeg\r\n" +
		"Content-Length: " + strconv.Itoa(len(jpg)) + "\r\n\r\n"
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	_, err := w.Write(jpg)
	return err
}
