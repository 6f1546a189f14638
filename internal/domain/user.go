// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxNicknameLen = 36
)

var (
	ErrNicknameTooLong = errors.New("nickname too long")
	ErrNicknameEmpty   = errors.New("nickname empty")
)

// UserID is the identity the relay assigns to a connection.
type UserID string

// NormalizeNickname trims the input and checks it against the relay limits.
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if len(nickname) == 0 {
		return "", ErrNicknameEmpty
	}
	if len(nickname) > MaxNicknameLen {
		return "", ErrNicknameTooLong
	}
	return nickname, nil
}
