package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by any operation attempted outside Connected.
	ErrNotConnected = errors.New("not connected")
	// ErrRoomCreationFailed is retryable; the relay did not allocate a room.
	ErrRoomCreationFailed = errors.New("room creation failed")
	ErrJoinFailed         = errors.New("join failed")
	// ErrReconnectExhausted is terminal: automatic recovery has stopped.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// JoinError carries the reason a join was refused.
type JoinError struct {
	RoomID RoomID
	Reason string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join %s failed: %s", e.RoomID, e.Reason)
}

func (e *JoinError) Is(target error) bool { return target == ErrJoinFailed }
