// Package signaling negotiates WebRTC data channels for frame streaming over
// a websocket offer/answer exchange.
package signaling

import "github.com/pion/webrtc/v3"

// Message is a websocket signaling payload.
type Message struct {
	T         string                   `json:"t"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// DataChannelLabel names the frame data channel.
const DataChannelLabel = "frames"
