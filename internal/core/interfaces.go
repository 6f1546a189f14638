package core

import (
	"context"

	"github.com/dkeye/Chat/internal/domain"
)

// EventHandler receives transport lifecycle and inbound relay events.
// Implementations must not block; they are called from transport goroutines.
type EventHandler interface {
	OnConnectionReady()
	OnClose()
	OnMessage(domain.Envelope)
}

// Transport is a single relay client connection.
// It is owned by the connection manager; nothing else holds one.
type Transport interface {
	SendMessage(t domain.MessageType, payload any) error
	CreateChatRoom(ctx context.Context, nickname string) (domain.RoomID, error)
	JoinChatRoom(ctx context.Context, nickname string, roomID domain.RoomID) (domain.JoinResult, error)
	// Teardown releases the connection without reporting OnClose.
	Teardown()
}

// TransportFactory starts a new transport bound to h. The handshake outcome
// is reported asynchronously through OnConnectionReady or OnClose.
type TransportFactory func(h EventHandler) Transport
