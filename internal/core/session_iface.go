package core

import "context"

// Fixed keys of the persisted room session.
const (
	NicknameKey = "nickname"
	RoomIDKey   = "roomId"
)

// SessionStore is a durable store scoped to one client session.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
