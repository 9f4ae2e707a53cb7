package config

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	defaultBackendAddr   = "127.0.0.1:8787"
	defaultCaptureSource = SourcePattern
	defaultFFmpegPath    = "ffmpeg"
	defaultWidth         = 1280
	defaultHeight        = 720
	defaultFPS           = 30
	defaultJPEGQuality   = 80
)

// Capture sources of the framestream backend.
const (
	SourcePattern = "pattern"
	SourceFFmpeg  = "ffmpeg"
)

// BackendConfig holds the framestream backend configuration.
type BackendConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	DataDir       string `yaml:"-"`
	Source        string `yaml:"source"`
	FFmpegPath    string `yaml:"ffmpeg_path"`
	CaptureDriver string `yaml:"capture_driver"`
	CaptureDevice string `yaml:"capture_device"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	FPS           int    `yaml:"fps"`
	JPEGQuality   int    `yaml:"jpeg_quality"`
}

// LoadBackend reads the framestream backend configuration.
func LoadBackend() (BackendConfig, error) {
	cfg := BackendConfig{
		ListenAddr:    defaultBackendAddr,
		Source:        defaultCaptureSource,
		FFmpegPath:    defaultFFmpegPath,
		CaptureDriver: defaultCaptureDriver(),
		Width:         defaultWidth,
		Height:        defaultHeight,
		FPS:           defaultFPS,
		JPEGQuality:   defaultJPEGQuality,
	}

	e, err := newEnv()
	if err != nil {
		return BackendConfig{}, err
	}
	cfg.DataDir = e.dataDir
	if err := loadSection(e.dataDir, "framestream", &cfg); err != nil {
		return BackendConfig{}, err
	}

	cfg.ListenAddr = e.String("FRAMESTREAM_ADDR", cfg.ListenAddr)
	cfg.Source = strings.ToLower(e.String("CAPTURE_SOURCE", cfg.Source))
	cfg.FFmpegPath = e.String("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.CaptureDriver = normalizeCaptureDriver(e.String("CAPTURE_DRIVER", cfg.CaptureDriver))
	cfg.CaptureDevice = e.String("CAPTURE_DEVICE", cfg.CaptureDevice)

	ints := []struct {
		key string
		dst *int
		min int
		max int
	}{
		{"CAPTURE_WIDTH", &cfg.Width, 16, 8192},
		{"CAPTURE_HEIGHT", &cfg.Height, 16, 8192},
		{"CAPTURE_FPS", &cfg.FPS, 1, 240},
		{"JPEG_QUALITY", &cfg.JPEGQuality, 1, 100},
	}
	for _, it := range ints {
		v, err := e.Int(it.key, *it.dst)
		if err != nil {
			return BackendConfig{}, err
		}
		if v < it.min || v > it.max {
			return BackendConfig{}, fmt.Errorf("%s must be %d-%d", it.key, it.min, it.max)
		}
		*it.dst = v
	}

	switch cfg.Source {
	case SourcePattern, SourceFFmpeg:
	default:
		return BackendConfig{}, fmt.Errorf("CAPTURE_SOURCE must be %q or %q", SourcePattern, SourceFFmpeg)
	}
	if cfg.Source == SourceFFmpeg && cfg.CaptureDevice == "" && cfg.CaptureDriver != "gdigrab" {
		return BackendConfig{}, fmt.Errorf("CAPTURE_DEVICE is required for %s", cfg.CaptureDriver)
	}
	return cfg, nil
}

// normalizeCaptureDriver ensures a supported capture driver value.
func normalizeCaptureDriver(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "v4l2", "video4linux2":
		return "v4l2"
	case "dshow":
		return "dshow"
	case "avfoundation":
		return "avfoundation"
	case "gdigrab":
		return "gdigrab"
	default:
		return defaultCaptureDriver()
	}
}

// defaultCaptureDriver returns the camera input format of the host OS.
func defaultCaptureDriver() string {
	switch runtime.GOOS {
	case "windows":
		return "dshow"
	case "darwin":
		return "avfoundation"
	default:
		return "v4l2"
	}
}
