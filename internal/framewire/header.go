// Package framewire defines the binary frame message and the message
// connection shared by the viewer and the frame backend.
//
// A frame message is a 16-byte little-endian header followed by an encoded
// image payload:
//
//	u32 width | u32 height | u32 frameIdLow | u32 frameIdHigh | payload...
//
// The receiver answers every processed frame with the text message "ack".
package framewire

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed size of the frame header in bytes.
const HeaderSize = 16

// Ack is the credit token sent by the receiver.
const Ack = "ack"

// ErrShortMessage reports a message smaller than the frame header.
var ErrShortMessage = errors.New("framewire: message shorter than header")

// Header carries frame geometry and the server-assigned frame id.
type Header struct {
	Width  uint32
	Height uint32
	ID     uint64
}

// Frame is a decoded header plus its still-encoded payload.
type Frame struct {
	Header
	Payload []byte
}

// PutHeader writes h into the first HeaderSize bytes of dst.
func PutHeader(dst []byte, h Header) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Width)
	binary.LittleEndian.PutUint32(dst[4:8], h.Height)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(h.ID))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(h.ID>>32))
}

// ParseHeader decodes the header at the start of msg.
func ParseHeader(msg []byte) (Header, error) {
	if len(msg) < HeaderSize {
		return Header{}, ErrShortMessage
	}
	lo := binary.LittleEndian.Uint32(msg[8:12])
	hi := binary.LittleEndian.Uint32(msg[12:16])
	return Header{
		Width:  binary.LittleEndian.Uint32(msg[0:4]),
		Height: binary.LittleEndian.Uint32(msg[4:8]),
		ID:     uint64(lo) + uint64(hi)<<32,
	}, nil
}

// Marshal builds a complete frame message.
func Marshal(f Frame) []byte {
	msg := make([]byte, HeaderSize+len(f.Payload))
	PutHeader(msg, f.Header)
	copy(msg[HeaderSize:], f.Payload)
	return msg
}

// Parse splits msg into header and payload. The payload aliases msg.
func Parse(msg []byte) (Frame, error) {
	h, err := ParseHeader(msg)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Header: h, Payload: msg[HeaderSize:]}, nil
}
