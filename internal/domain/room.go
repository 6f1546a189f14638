package domain

import (
	"errors"
	"strings"
)

var ErrRoomIDEmpty = errors.New("room id empty")

type RoomID string

// NormalizeRoomID trims the input; an empty id is rejected.
func NormalizeRoomID(id string) (RoomID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrRoomIDEmpty
	}
	return RoomID(id), nil
}

// Session is the (nickname, room) pair kept across reloads.
// A persisted Session always has both fields set.
type Session struct {
	Nickname string `json:"nickname"`
	RoomID   RoomID `json:"roomId"`
}

func (s Session) Complete() bool {
	return s.Nickname != "" && s.RoomID != ""
}
