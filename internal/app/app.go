// Package app wires the viewing session, the control socket and the MJPEG
// view together.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/frudas24/camslice/internal/config"
	"github.com/frudas24/camslice/internal/control"
	"github.com/frudas24/camslice/internal/devicectl"
	"github.com/frudas24/camslice/internal/mjpeg"
	"github.com/frudas24/camslice/internal/selection"
	"github.com/frudas24/camslice/internal/session"
	"github.com/frudas24/camslice/internal/signaling"
	"github.com/frudas24/camslice/internal/transport"
	"github.com/frudas24/camslice/internal/transport/rtcconn"
)

// dialTimeout bounds the websocket handshake with the frame backend.
const dialTimeout = 5 * time.Second

// App coordinates the HTTP API, the control websocket and the active session.
type App struct {
	mu        sync.Mutex
	cfg       config.Config
	dialer    transport.Dialer
	device    selection.CropReporter
	session   *session.Session
	control   *control.Server
	stream    *mjpeg.Stream
	publisher *mjpeg.Publisher
	cancel    context.CancelFunc
}

// New creates the application. device may be nil to disable hardware crop.
func New(cfg config.Config, dialer transport.Dialer, device selection.CropReporter) (*App, error) {
	if dialer == nil {
		return nil, errors.New("frame dialer is required")
	}
	a := &App{
		cfg:    cfg,
		dialer: dialer,
		device: device,
	}
	interval := time.Duration(cfg.MJPEGIntervalMs) * time.Millisecond
	a.stream = mjpeg.NewStream(interval)
	a.publisher = mjpeg.NewPublisher(a.stream, a.composite, interval, cfg.MJPEGQuality)
	a.control = control.NewServer(a.Session)
	return a, nil
}

// NewDialer returns the frame dialer for the configured transport.
func NewDialer(cfg config.Config) (transport.Dialer, error) {
	switch cfg.FrameTransport {
	case config.TransportWebRTC:
		api, err := rtcconn.NewAPI()
		if err != nil {
			return nil, err
		}
		return &signaling.Dialer{API: api}, nil
	case config.TransportWebSocket, "":
		return transport.NewWebSocketDialer(dialTimeout), nil
	default:
		return nil, fmt.Errorf("unknown frame transport %q", cfg.FrameTransport)
	}
}

// NewDevice returns the device-control collaborator, or nil when no device
// URL is configured.
func NewDevice(cfg config.Config) selection.CropReporter {
	c := devicectl.New(cfg.DeviceURL, time.Duration(cfg.DeviceTimeoutMs)*time.Millisecond)
	if !c.Enabled() {
		return nil
	}
	return c
}

// Start runs the MJPEG publisher and, when configured, opens the default
// stream.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	go a.publisher.Run(ctx)

	if !a.cfg.AutoStart {
		return nil
	}
	if _, err := a.StartStream(ctx, ""); err != nil {
		log.Printf("auto start: %v", err)
	}
	return nil
}

// Stop ends the active stream and the publisher.
func (a *App) Stop() error {
	a.StopStream()
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// StartStream replaces the active session with a new one connected to
// endpoint. An empty endpoint selects the configured default.
func (a *App) StartStream(ctx context.Context, endpoint string) (*session.Session, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = a.cfg.FrameEndpoint
	}
	sess, err := session.New(session.Deps{
		Dialer:       a.dialer,
		Device:       a.device,
		EdgeMargin:   float64(a.cfg.EdgeMarginPx),
		MinSize:      a.cfg.MinSelectionPx,
		FocusRefresh: time.Duration(a.cfg.FocusRefreshMs) * time.Millisecond,
		OnEvent:      a.control.Push,
	})
	if err != nil {
		return nil, err
	}

	a.StopStream()
	if err := sess.Start(ctx, endpoint); err != nil {
		sess.Stop()
		return nil, fmt.Errorf("start stream %s: %w", endpoint, err)
	}

	a.mu.Lock()
	prev := a.session
	a.session = sess
	a.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
	return sess, nil
}

// StopStream stops the active session. It reports whether one was running.
func (a *App) StopStream() bool {
	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.mu.Unlock()
	if sess == nil {
		return false
	}
	sess.Stop()
	return true
}

// Session returns the active session or nil.
func (a *App) Session() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Control returns the control websocket handler.
func (a *App) Control() *control.Server {
	return a.control
}

// ViewStream returns the MJPEG stream of the composited view.
func (a *App) ViewStream() *mjpeg.Stream {
	return a.stream
}

// composite samples the active session for the MJPEG publisher.
func (a *App) composite() image.Image {
	sess := a.Session()
	if sess == nil {
		return nil
	}
	img := sess.Composite()
	if img == nil {
		return nil
	}
	return img
}
