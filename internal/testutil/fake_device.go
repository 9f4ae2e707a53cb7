package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/frudas24/camslice/internal/geom"
)

// DeviceCall records a single crop request.
type DeviceCall struct {
	Name string
	Rect geom.Rect
}

// FakeDevice records crop requests for tests. Safe for concurrent use.
type FakeDevice struct {
	mu    sync.Mutex
	err   error
	log   []DeviceCall
	calls chan DeviceCall
}

// NewFakeDevice returns a device that accepts every request.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{calls: make(chan DeviceCall, 64)}
}

// SetErr makes every later request fail with err.
func (f *FakeDevice) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// SetCrop records a crop request.
func (f *FakeDevice) SetCrop(_ context.Context, r geom.Rect) error {
	return f.record(DeviceCall{Name: "SetCrop", Rect: r})
}

// ResetCrop records a crop reset.
func (f *FakeDevice) ResetCrop(_ context.Context) error {
	return f.record(DeviceCall{Name: "ResetCrop"})
}

// Calls returns the recorded requests in order.
func (f *FakeDevice) Calls() []DeviceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceCall(nil), f.log...)
}

// Next waits up to timeout for the next request.
func (f *FakeDevice) Next(timeout time.Duration) (DeviceCall, bool) {
	select {
	case c := <-f.calls:
		return c, true
	case <-time.After(timeout):
		return DeviceCall{}, false
	}
}

// record logs c and returns the configured failure.
func (f *FakeDevice) record(c DeviceCall) error {
	f.mu.Lock()
	f.log = append(f.log, c)
	err := f.err
	f.mu.Unlock()
	select {
	case f.calls <- c:
	default:
	}
	return err
}
