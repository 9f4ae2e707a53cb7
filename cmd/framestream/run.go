package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/frudas24/camslice/internal/config"
	"github.com/frudas24/camslice/internal/ffmpeg"
	"github.com/frudas24/camslice/internal/framestream"
	"github.com/frudas24/camslice/internal/signaling"
	"github.com/frudas24/camslice/internal/transport"
	"github.com/frudas24/camslice/internal/transport/rtcconn"
)

// source produces frames until its context ends.
type source interface {
	Run(ctx context.Context) error
}

// run wires the backend and blocks until shutdown.
func run(debug bool) error {
	cfg, err := config.LoadBackend()
	if err != nil {
		return err
	}
	transport.SetDebugLogging(debug)
	if debug {
		log.Printf("debug: enabled")
	}
	logStartup(cfg)

	api, err := rtcconn.NewAPI()
	if err != nil {
		return err
	}
	srv := framestream.NewServer(framestream.Options{API: api, Policy: signaling.ViewerReplace})
	defer srv.Close()

	src, err := newSource(cfg, srv.Publish)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := src.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newSource builds the configured frame source.
func newSource(cfg config.BackendConfig, sink func([]byte, int, int)) (source, error) {
	if cfg.Source == config.SourceFFmpeg {
		return ffmpeg.NewCapture(ffmpeg.Options{
			FFmpegPath: cfg.FFmpegPath,
			Driver:     cfg.CaptureDriver,
			Device:     cfg.CaptureDevice,
			Width:      cfg.Width,
			Height:     cfg.Height,
			FPS:        cfg.FPS,
		}, cfg.JPEGQuality, sink)
	}
	return framestream.NewPatternSource(cfg.Width, cfg.Height, cfg.FPS, cfg.JPEGQuality, sink)
}

// logFatal prints and exits for startup failures.
func logFatal(err error) {
	log.Printf("fatal: %v", err)
	os.Exit(1)
}

// logStartup prints startup checks and connection info.
func logStartup(cfg config.BackendConfig) {
	log.Printf("framestream starting")
	log.Printf("source: %s %dx%d@%d q%d", cfg.Source, cfg.Width, cfg.Height, cfg.FPS, cfg.JPEGQuality)
	if cfg.Source == config.SourceFFmpeg {
		logFFmpegStatus(cfg.FFmpegPath)
		log.Printf("capture driver: %s device: %q", cfg.CaptureDriver, cfg.CaptureDevice)
	}
	log.Printf("listen addr: %s", cfg.ListenAddr)
	host, port, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Printf("frames url: ws://%s/ws/frames", net.JoinHostPort(host, port))
}

// logFFmpegStatus reports whether the ffmpeg binary is discoverable.
func logFFmpegStatus(path string) {
	if filepath.IsAbs(path) {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			log.Printf("ffmpeg check: missing (%v)", err)
		case info.IsDir():
			log.Printf("ffmpeg check: missing (path is a directory)")
		default:
			log.Printf("ffmpeg check: ok (%s)", path)
		}
		return
	}
	found, err := exec.LookPath(path)
	switch {
	case err == nil:
		log.Printf("ffmpeg check: ok (%s)", found)
	case errors.Is(err, exec.ErrDot):
		log.Printf("ffmpeg check: missing (found relative to current dir; use absolute path)")
	default:
		log.Printf("ffmpeg check: missing (%v)", err)
	}
}
