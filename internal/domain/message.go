package domain

import (
	"encoding/json"
	"errors"
	"slices"
)

var ErrEmptyMessage = errors.New("empty message")

// MessageType names an envelope kind on the relay connection.
type MessageType string

const (
	SendMessage       MessageType = "SEND_MESSAGE"
	SetTypingPresence MessageType = "SET_TYPING_PRESENCE"
	UserIDAssigned    MessageType = "userId"
)

// Envelope is an inbound relay event. Data is decoded by whoever handles Type.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is a single entry of a room's history.
type ChatMessage struct {
	IsSystemMessage bool   `json:"isSystemMessage"`
	UserIcon        string `json:"userIcon,omitempty"`
	UserNickname    string `json:"userNickname,omitempty"`
	Body            string `json:"body"`
	PermID          string `json:"permId"`
	Timestamp       int64  `json:"timestamp"`
}

// OutgoingChat is the SEND_MESSAGE payload a client sends.
type OutgoingChat struct {
	Body string `json:"body"`
}

// TypingPresence is the aggregate typing state the relay broadcasts.
type TypingPresence struct {
	AnyoneTyping bool     `json:"anyoneTyping"`
	UsersTyping  []UserID `json:"usersTyping"`
}

// Includes reports whether uid is among the typing users.
func (p TypingPresence) Includes(uid UserID) bool {
	return slices.Contains(p.UsersTyping, uid)
}

// TypingSignal is the outbound SET_TYPING_PRESENCE payload.
type TypingSignal struct {
	Typing bool `json:"typing"`
}

// UserIDAssignment is the payload of the out-of-band userId envelope.
type UserIDAssignment struct {
	UserID UserID `json:"userId"`
}

// JoinResult carries the authoritative room history returned on join.
type JoinResult struct {
	Messages []ChatMessage `json:"messages"`
}
