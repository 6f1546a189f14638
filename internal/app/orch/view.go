package orch

import (
	"context"

	"github.com/dkeye/Chat/internal/domain"
)

type Screen string

const (
	ScreenEntry Screen = "entry"
	ScreenChat  Screen = "chat"
)

// View is a consistent snapshot of everything the UI renders.
type View struct {
	Connection    domain.ConnectionState `json:"connection"`
	Exhausted     bool                   `json:"exhausted"`
	Screen        Screen                 `json:"screen"`
	Nickname      string                 `json:"nickname,omitempty"`
	RoomID        domain.RoomID          `json:"roomId,omitempty"`
	Rejoining     bool                   `json:"rejoining"`
	Messages      []domain.ChatMessage   `json:"messages"`
	SomeoneTyping bool                   `json:"someoneTyping"`
	Typing        bool                   `json:"typing"`
	UserID        domain.UserID          `json:"userId,omitempty"`
	LastError     string                 `json:"lastError,omitempty"`
}

func (o *Orchestrator) View(ctx context.Context) (View, error) {
	var v View
	err := o.Loop.Do(ctx, func() { v = o.snapshot() })
	return v, err
}

func (o *Orchestrator) snapshot() View {
	v := View{
		Connection:    o.Conn.State(),
		Exhausted:     o.Conn.Exhausted(),
		Screen:        ScreenEntry,
		Rejoining:     o.Rooms.RejoinPending(),
		Messages:      o.Log.Messages(),
		SomeoneTyping: o.Typing.SomeoneTyping(),
		Typing:        o.Typing.Typing(),
		UserID:        o.Typing.Self(),
	}
	if o.Rooms.Active() {
		cur := o.Rooms.Current()
		v.Screen = ScreenChat
		v.Nickname = cur.Nickname
		v.RoomID = cur.RoomID
	}
	if err := o.Rooms.LastErr(); err != nil {
		v.LastError = err.Error()
	}
	return v
}
