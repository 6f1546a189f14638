package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrNoRoom is returned when a chat message is sent outside a room.
var ErrNoRoom = errors.New("not in a room")

type createResult struct {
	id  domain.RoomID
	err error
}

// CreateRoom allocates a room on the relay and enters it.
func (o *Orchestrator) CreateRoom(ctx context.Context, nickname string) (domain.RoomID, error) {
	rctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	res := make(chan createResult, 1)
	if err := o.Loop.Do(ctx, func() {
		if o.Conn.Exhausted() {
			res <- createResult{err: domain.ErrReconnectExhausted}
			return
		}
		o.Typing.Settle()
		o.Rooms.CreateRoom(rctx, nickname, func(id domain.RoomID, err error) {
			res <- createResult{id: id, err: err}
		})
	}); err != nil {
		return "", err
	}
	select {
	case r := <-res:
		return r.id, r.err
	case <-rctx.Done():
		return "", fmt.Errorf("create room: %w", rctx.Err())
	}
}

// JoinRoom enters an existing room, installing its history.
func (o *Orchestrator) JoinRoom(ctx context.Context, nickname, roomID string) error {
	rctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	res := make(chan error, 1)
	if err := o.Loop.Do(ctx, func() {
		if o.Conn.Exhausted() {
			res <- domain.ErrReconnectExhausted
			return
		}
		o.Typing.Settle()
		o.Rooms.JoinRoom(rctx, nickname, roomID, func(err error) { res <- err })
	}); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-rctx.Done():
		return fmt.Errorf("join room: %w", rctx.Err())
	}
}

// Leave returns to the entry state and forgets the persisted session.
func (o *Orchestrator) Leave(ctx context.Context) error {
	return o.Loop.Do(ctx, func() {
		o.Typing.Settle()
		o.Rooms.Leave(ctx)
	})
}

// SendChat sends a message to the current room. A message that cannot be sent
// because the connection is down is dropped; delivered reports whether it went out.
func (o *Orchestrator) SendChat(ctx context.Context, body string) (delivered bool, err error) {
	if strings.TrimSpace(body) == "" {
		return false, domain.ErrEmptyMessage
	}
	doErr := o.Loop.Do(ctx, func() {
		if !o.Rooms.Active() {
			err = ErrNoRoom
			return
		}
		o.Typing.Settle()
		sendErr := o.Conn.Send(domain.SendMessage, domain.OutgoingChat{Body: body})
		switch {
		case sendErr == nil:
			delivered = true
		case errors.Is(sendErr, domain.ErrNotConnected):
			log.Warn().Str("module", "orch").Msg("chat message dropped while disconnected")
		default:
			err = sendErr
		}
		o.changed()
	})
	if doErr != nil {
		return false, doErr
	}
	return delivered, err
}

// UpdateInput feeds the compose field content to the typing tracker.
func (o *Orchestrator) UpdateInput(ctx context.Context, text string) error {
	return o.Loop.Do(ctx, func() {
		was := o.Typing.Typing()
		o.Typing.Input(text)
		if was != o.Typing.Typing() {
			o.changed()
		}
	})
}
