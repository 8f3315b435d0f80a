// Package hub fans scanner feeds out to websocket viewers. One goroutine
// owns the viewer set; every viewer has a single writer goroutine.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one websocket payload.
type Message struct {
	Binary bool
	Data   []byte
}

// Text wraps an encoded JSON document.
func Text(data []byte) Message {
	return Message{Data: data}
}

// Frame wraps a JPEG image for the live preview.
func Frame(jpeg []byte) Message {
	return Message{Binary: true, Data: jpeg}
}

func (m Message) opcode() int {
	if m.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
