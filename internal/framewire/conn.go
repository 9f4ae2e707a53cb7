package framewire

import "github.com/gorilla/websocket"

// Message types, numerically identical to the websocket opcodes so a
// *websocket.Conn satisfies Conn directly.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Conn is a message-oriented, full-duplex connection.
//
// ReadMessage is called from a single reader goroutine and WriteMessage from
// a single writer; implementations need not support concurrent writers.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// IsAck reports whether a text message is the credit token.
func IsAck(messageType int, p []byte) bool {
	return messageType == TextMessage && string(p) == Ack
}
