package transport

import "sync/atomic"

// debugFrames controls whether per-frame logs are emitted.
var debugFrames atomic.Bool

// SetDebugLogging enables/disables verbose per-frame transport logs.
func SetDebugLogging(enabled bool) {
	debugFrames.Store(enabled)
}

// debugEnabled reports whether per-frame logs are enabled.
func debugEnabled() bool {
	return debugFrames.Load()
}
