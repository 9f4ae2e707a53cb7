// Package devicectl asks the capture device to crop in hardware.
package devicectl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/frudas24/camslice/internal/geom"
)

// ErrDisabled is returned when no device URL is configured.
var ErrDisabled = errors.New("devicectl: no device configured")

// DefaultTimeout bounds one device request.
const DefaultTimeout = 2 * time.Second

// Client posts crop requests to the device-control service.
type Client struct {
	base string
	http *http.Client
}

// cropRequest is the JSON body of a crop request.
type cropRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// New returns a client for base, e.g. "http://127.0.0.1:9100". An empty base
// yields a disabled client.
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(strings.TrimSpace(base), "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a device URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.base != ""
}

// SetCrop requests a hardware crop of r in frame pixels.
func (c *Client) SetCrop(ctx context.Context, r geom.Rect) error {
	body := cropRequest{X: r.X, Y: r.Y, W: r.W, H: r.H}
	if err := c.post(ctx, "/api/crop", body); err != nil {
		return fmt.Errorf("devicectl: set crop: %w", err)
	}
	return nil
}

// ResetCrop requests the full sensor area again.
func (c *Client) ResetCrop(ctx context.Context) error {
	if err := c.post(ctx, "/api/crop/reset", struct{}{}); err != nil {
		return fmt.Errorf("devicectl: reset crop: %w", err)
	}
	return nil
}

// post sends a JSON body and checks for a 2xx reply.
func (c *Client) post(ctx context.Context, path string, body any) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
