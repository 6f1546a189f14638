// Package chatlog keeps the ordered messages of the current room.
package chatlog

import (
	"github.com/dkeye/Chat/internal/domain"
)

// Log grows only by Append; Replace swaps the whole history on (re)join.
// Messages are never edited in place and are not deduplicated by permId.
type Log struct {
	messages []domain.ChatMessage
}

func New() *Log { return &Log{} }

func (l *Log) Append(m domain.ChatMessage) {
	l.messages = append(l.messages, m)
}

func (l *Log) Replace(history []domain.ChatMessage) {
	l.messages = append([]domain.ChatMessage(nil), history...)
}

// Messages returns a copy in delivery order.
func (l *Log) Messages() []domain.ChatMessage {
	return append([]domain.ChatMessage{}, l.messages...)
}

func (l *Log) Len() int { return len(l.messages) }
