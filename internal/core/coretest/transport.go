// Package coretest provides in-memory doubles of core interfaces for tests.
package coretest

import (
	"context"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type Sent struct {
	Type    domain.MessageType
	Payload any
}

// Transport records everything sent through it.
type Transport struct {
	Handler core.EventHandler

	mu       sync.Mutex
	sent     []Sent
	tornDown bool
	factory  *Factory
}

func (t *Transport) SendMessage(typ domain.MessageType, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, Sent{Type: typ, Payload: payload})
	return nil
}

func (t *Transport) CreateChatRoom(ctx context.Context, nickname string) (domain.RoomID, error) {
	t.factory.mu.Lock()
	fn := t.factory.CreateFn
	t.factory.mu.Unlock()
	if fn == nil {
		return "", domain.ErrRoomCreationFailed
	}
	return fn(nickname)
}

func (t *Transport) JoinChatRoom(ctx context.Context, nickname string, roomID domain.RoomID) (domain.JoinResult, error) {
	t.factory.mu.Lock()
	fn := t.factory.JoinFn
	t.factory.mu.Unlock()
	if fn == nil {
		return domain.JoinResult{}, &domain.JoinError{RoomID: roomID, Reason: "no relay"}
	}
	return fn(nickname, roomID)
}

func (t *Transport) Teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tornDown = true
}

func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

func (t *Transport) TornDown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tornDown
}

// Factory hands out Transports and keeps every one it created.
type Factory struct {
	mu       sync.Mutex
	clients  []*Transport
	CreateFn func(nickname string) (domain.RoomID, error)
	JoinFn   func(nickname string, roomID domain.RoomID) (domain.JoinResult, error)
}

func (f *Factory) New(h core.EventHandler) core.Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &Transport{Handler: h, factory: f}
	f.clients = append(f.clients, t)
	return t
}

func (f *Factory) SetCreate(fn func(nickname string) (domain.RoomID, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateFn = fn
}

func (f *Factory) SetJoin(fn func(nickname string, roomID domain.RoomID) (domain.JoinResult, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinFn = fn
}

func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Last returns the most recently created transport, or nil.
func (f *Factory) Last() *Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}
