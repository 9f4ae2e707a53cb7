package mjpeg

import (
	"context"
	"image"
	"log"
	"time"
)

// SourceFunc returns the image to publish, or nil when none is available.
type SourceFunc func() image.Image

// Publisher samples a source on a fixed interval and feeds a Stream.
type Publisher struct {
	stream   *Stream
	source   SourceFunc
	interval time.Duration
	quality  int
}

// NewPublisher builds a publisher. A non-positive interval selects 100ms.
func NewPublisher(stream *Stream, source SourceFunc, interval time.Duration, quality int) *Publisher {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Publisher{stream: stream, source: source, interval: interval, quality: quality}
}

// Run publishes until ctx is done. Ticks with no subscribers are skipped.
func (p *Publisher) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if p.stream.Subscribers() == 0 {
				continue
			}
			p.PublishOnce()
		}
	}
}

// PublishOnce samples the source and publishes the result. It reports
// whether a frame was published.
func (p *Publisher) PublishOnce() bool {
	img := p.source()
	if img == nil {
		return false
	}
	jpg, err := EncodeImage(img, p.quality)
	if err != nil {
		log.Printf("mjpeg: %v", err)
		return false
	}
	p.stream.Publish(jpg)
	return true
}
