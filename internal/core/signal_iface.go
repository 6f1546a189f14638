package core

import (
	"encoding/json"

	"github.com/dkeye/Chat/internal/domain"
)

// Frame is a raw text payload on the relay websocket.
type Frame []byte

// Packet is the JSON shape of every relay frame. Requests and their replies
// carry a CallbackID; events do not.
type Packet struct {
	Type       domain.MessageType `json:"type"`
	Data       json.RawMessage    `json:"data,omitempty"`
	CallbackID string             `json:"callbackId,omitempty"`
}

// SignalConnection abstracts a buffered outbound frame queue.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
