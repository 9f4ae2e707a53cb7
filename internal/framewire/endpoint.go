package framewire

import (
	"fmt"
	"net/url"
	"strings"
)

// Well-known backend paths.
const (
	FramesPath = "/ws/frames"
	SignalPath = "/ws/signal"
)

// NormalizeEndpoint accepts "host:port", "ws://host:port" or a full URL and
// returns a websocket URL. An empty path becomes defaultPath.
func NormalizeEndpoint(endpoint, defaultPath string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("empty endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultPath
	}
	return u.String(), nil
}
