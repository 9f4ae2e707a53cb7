// Package ffmpeg captures camera or screen frames through an ffmpeg child
// process.
package ffmpeg

import (
	"fmt"
	"strconv"
	"time"
)

// Capture drivers understood by BuildCaptureArgs.
const (
	DriverV4L2         = "v4l2"
	DriverDShow        = "dshow"
	DriverAVFoundation = "avfoundation"
	DriverGDIGrab      = "gdigrab"
)

// Options describes one capture pipeline.
type Options struct {
	FFmpegPath     string
	Driver         string
	Device         string
	Width          int
	Height         int
	FPS            int
	RestartBackoff time.Duration
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.Driver == "" {
		o.Driver = DriverV4L2
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.RestartBackoff <= 0 {
		o.RestartBackoff = 2 * time.Second
	}
	return o
}

// FrameBytes returns the size of one rgb24 frame.
func (o Options) FrameBytes() int {
	return o.Width * o.Height * 3
}

// BuildCaptureArgs returns ffmpeg args that read from the configured driver
// and write scaled rgb24 frames to stdout.
func BuildCaptureArgs(opts Options) ([]string, error) {
	opts = opts.withDefaults()
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid frame size %dx%d", opts.Width, opts.Height)
	}
	input, err := buildInputArgs(opts)
	if err != nil {
		return nil, err
	}
	args := append([]string{"-hide_banner", "-loglevel", "error"}, input...)
	return append(args, buildOutputArgs(opts)...), nil
}

// buildInputArgs builds the capture-side arguments.
func buildInputArgs(opts Options) ([]string, error) {
	rate := strconv.Itoa(opts.FPS)
	size := fmt.Sprintf("%dx%d", opts.Width, opts.Height)
	switch opts.Driver {
	case DriverV4L2:
		if opts.Device == "" {
			return nil, fmt.Errorf("ffmpeg: %s needs a device", opts.Driver)
		}
		return []string{"-f", "v4l2", "-framerate", rate, "-video_size", size, "-i", opts.Device}, nil
	case DriverDShow:
		if opts.Device == "" {
			return nil, fmt.Errorf("ffmpeg: %s needs a device", opts.Driver)
		}
		return []string{"-f", "dshow", "-framerate", rate, "-video_size", size, "-i", "video=" + opts.Device}, nil
	case DriverAVFoundation:
		if opts.Device == "" {
			return nil, fmt.Errorf("ffmpeg: %s needs a device", opts.Driver)
		}
		return []string{"-f", "avfoundation", "-framerate", rate, "-video_size", size, "-i", opts.Device}, nil
	case DriverGDIGrab:
		device := opts.Device
		if device == "" {
			device = "desktop"
		}
		return []string{"-f", "gdigrab", "-framerate", rate, "-i", device}, nil
	default:
		return nil, fmt.Errorf("ffmpeg: unknown capture driver %q", opts.Driver)
	}
}

// buildOutputArgs scales to the configured size so every frame has a known
// byte length on stdout.
func buildOutputArgs(opts Options) []string {
	return []string{
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-",
	}
}
