// Package config loads configuration for the camslice viewer and the
// framestream backend.
//
// Values are layered: built-in defaults, then the optional YAML file
// DATA_DIR/camslice.yaml, then DATA_DIR/.env, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr      = "127.0.0.1:8790"
	defaultDataDir         = "./data"
	defaultFrameEndpoint   = "ws://127.0.0.1:8787/ws/frames"
	defaultFrameTransport  = TransportWebSocket
	defaultDeviceTimeoutMs = 2000
	defaultMJPEGIntervalMs = 100
	defaultMJPEGQuality    = 70
	defaultEdgeMarginPx    = 8
	defaultMinSelectionPx  = 4
	defaultFocusRefreshMs  = 16

	fileName = "camslice.yaml"
)

// Frame transports.
const (
	TransportWebSocket = "websocket"
	TransportWebRTC    = "webrtc"
)

// Config holds the viewer configuration.
type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	DataDir         string `yaml:"-"`
	FrameEndpoint   string `yaml:"frame_endpoint"`
	FrameTransport  string `yaml:"frame_transport"`
	DeviceURL       string `yaml:"device_url"`
	DeviceTimeoutMs int    `yaml:"device_timeout_ms"`
	MJPEGIntervalMs int    `yaml:"mjpeg_interval_ms"`
	MJPEGQuality    int    `yaml:"mjpeg_quality"`
	EdgeMarginPx    int    `yaml:"edge_margin_px"`
	MinSelectionPx  int    `yaml:"min_selection_px"`
	FocusRefreshMs  int    `yaml:"focus_refresh_ms"`
	AutoStart       bool   `yaml:"auto_start"`
}

// Load reads the viewer configuration.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		FrameEndpoint:   defaultFrameEndpoint,
		FrameTransport:  defaultFrameTransport,
		DeviceTimeoutMs: defaultDeviceTimeoutMs,
		MJPEGIntervalMs: defaultMJPEGIntervalMs,
		MJPEGQuality:    defaultMJPEGQuality,
		EdgeMarginPx:    defaultEdgeMarginPx,
		MinSelectionPx:  defaultMinSelectionPx,
		FocusRefreshMs:  defaultFocusRefreshMs,
	}

	e, err := newEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.DataDir = e.dataDir
	if err := loadSection(e.dataDir, "viewer", &cfg); err != nil {
		return Config{}, err
	}

	cfg.ListenAddr = e.String("LISTEN_ADDR", cfg.ListenAddr)
	cfg.FrameEndpoint = e.String("FRAME_ENDPOINT", cfg.FrameEndpoint)
	cfg.FrameTransport = strings.ToLower(e.String("FRAME_TRANSPORT", cfg.FrameTransport))
	cfg.DeviceURL = e.String("DEVICE_URL", cfg.DeviceURL)
	cfg.AutoStart = e.Bool("AUTO_START", cfg.AutoStart)

	ints := []struct {
		key string
		dst *int
		min int
		max int
	}{
		{"DEVICE_TIMEOUT_MS", &cfg.DeviceTimeoutMs, 1, 60000},
		{"MJPEG_INTERVAL_MS", &cfg.MJPEGIntervalMs, 10, 10000},
		{"MJPEG_QUALITY", &cfg.MJPEGQuality, 1, 100},
		{"EDGE_MARGIN_PX", &cfg.EdgeMarginPx, 1, 100},
		{"MIN_SELECTION_PX", &cfg.MinSelectionPx, 1, 1000},
		{"FOCUS_REFRESH_MS", &cfg.FocusRefreshMs, 1, 1000},
	}
	for _, it := range ints {
		v, err := e.Int(it.key, *it.dst)
		if err != nil {
			return Config{}, err
		}
		if v < it.min || v > it.max {
			return Config{}, fmt.Errorf("%s must be %d-%d", it.key, it.min, it.max)
		}
		*it.dst = v
	}

	switch cfg.FrameTransport {
	case TransportWebSocket, TransportWebRTC:
	default:
		return Config{}, fmt.Errorf("FRAME_TRANSPORT must be %q or %q", TransportWebSocket, TransportWebRTC)
	}
	if cfg.ListenAddr == "" {
		return Config{}, errors.New("LISTEN_ADDR is required")
	}
	return cfg, nil
}

// env resolves keys against the process environment, then DATA_DIR/.env.
type env struct {
	dataDir string
	dotenv  map[string]string
}

// newEnv locates the data directory and reads its .env file.
func newEnv() (*env, error) {
	e := &env{dataDir: defaultDataDir}
	if v := strings.TrimSpace(os.Getenv("DATA_DIR")); v != "" {
		e.dataDir = v
	}
	values, err := loadEnvFile(filepath.Join(e.dataDir, ".env"))
	if err != nil {
		return nil, err
	}
	e.dotenv = values
	return e, nil
}

// lookup returns the raw value for key, trimmed, or "".
func (e *env) lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(e.dotenv[key])
}

// String returns an override when present, otherwise a default.
func (e *env) String(key, def string) string {
	if v := e.lookup(key); v != "" {
		return v
	}
	return def
}

// Int returns an int override when present, otherwise a default.
func (e *env) Int(key string, def int) (int, error) {
	raw := e.lookup(key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// Bool returns a bool override when present, otherwise a default.
func (e *env) Bool(key string, def bool) bool {
	raw := e.lookup(key)
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// loadSection decodes one top-level section of the YAML file into dst,
// leaving fields the file does not mention untouched.
func loadSection(dataDir, section string, dst any) error {
	path := filepath.Join(dataDir, fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var root map[string]yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	node, ok := root[section]
	if !ok {
		return nil
	}
	if err := node.Decode(dst); err != nil {
		return fmt.Errorf("parse %s section %q: %w", path, section, err)
	}
	return nil
}

// loadEnvFile reads KEY=VALUE pairs from a .env file.
func loadEnvFile(path string) (map[string]string, error) {
	values := map[string]string{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		values[key] = value
	}
	return values, nil
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if strings.HasPrefix(line, "export ") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	}
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", false
	}
	value = strings.Trim(value, `"'`)
	return key, value, true
}
