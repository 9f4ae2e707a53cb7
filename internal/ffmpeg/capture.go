package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/frudas24/camslice/internal/mjpeg"
)

// FrameFunc receives one JPEG-encoded frame.
type FrameFunc func(jpg []byte, width, height int)

// Capture reads rgb24 frames from ffmpeg, encodes them as JPEG and hands
// them to a FrameFunc. Read failures restart ffmpeg after a backoff.
type Capture struct {
	opts    Options
	args    []string
	quality int
	onFrame FrameFunc
	runner  *Runner
}

// NewCapture validates opts and builds a capture pipeline.
func NewCapture(opts Options, quality int, onFrame FrameFunc) (*Capture, error) {
	if onFrame == nil {
		return nil, errors.New("ffmpeg: frame callback is required")
	}
	opts = opts.withDefaults()
	args, err := BuildCaptureArgs(opts)
	if err != nil {
		return nil, err
	}
	return &Capture{
		opts:    opts,
		args:    args,
		quality: quality,
		onFrame: onFrame,
		runner:  NewRunner(),
	}, nil
}

// Args returns the ffmpeg command line, without the binary.
func (c *Capture) Args() []string {
	return append([]string(nil), c.args...)
}

// Run captures until ctx is done. It fails only when ffmpeg cannot be
// started the first time.
func (c *Capture) Run(ctx context.Context) error {
	log.Printf("ffmpeg: capture %s %s", c.opts.FFmpegPath, strings.Join(c.args, " "))
	stdout, err := c.runner.Start(c.opts.FFmpegPath, c.args)
	if err != nil {
		return fmt.Errorf("ffmpeg: start: %w", err)
	}
	stop := context.AfterFunc(ctx, c.runner.Stop)
	defer stop()
	defer c.runner.Stop()

	for {
		err := c.readFrames(stdout)
		c.runner.Stop()
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("ffmpeg: capture read error: %v (restart in %s)", err, c.opts.RestartBackoff)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.opts.RestartBackoff):
			}
			stdout, err = c.runner.Start(c.opts.FFmpegPath, c.args)
			if err == nil {
				break
			}
			log.Printf("ffmpeg: capture restart error: %v", err)
		}
		if ctx.Err() != nil {
			c.runner.Stop()
			return nil
		}
	}
}

// readFrames reads whole frames until the pipe fails.
func (c *Capture) readFrames(stdout io.Reader) error {
	raw := make([]byte, c.opts.FrameBytes())
	for {
		if _, err := io.ReadFull(stdout, raw); err != nil {
			return err
		}
		img := mjpeg.RGBImage(raw, c.opts.Width, c.opts.Height)
		jpg, err := mjpeg.EncodeImage(img, c.quality)
		if err != nil {
			log.Printf("ffmpeg: %v", err)
			continue
		}
		c.onFrame(jpg, c.opts.Width, c.opts.Height)
	}
}
