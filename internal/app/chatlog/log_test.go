package chatlog

import (
	"testing"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/assert"
)

func msg(id string) domain.ChatMessage {
	return domain.ChatMessage{UserNickname: "bob", Body: "body " + id, PermID: id, Timestamp: 1}
}

func TestAppend_KeepsDeliveryOrder(t *testing.T) {
	l := New()
	l.Append(msg("a"))
	l.Append(msg("b"))
	l.Append(msg("c"))

	got := l.Messages()
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].PermID, got[1].PermID, got[2].PermID})
}

func TestReplace_InstallsJoinHistory(t *testing.T) {
	l := New()
	l.Append(msg("old"))

	history := []domain.ChatMessage{{IsSystemMessage: true, UserNickname: "alice", Body: "joined", PermID: "p1", Timestamp: 1000}}
	l.Replace(history)

	assert.Equal(t, history, l.Messages())
}

func TestReplace_CopiesInput(t *testing.T) {
	l := New()
	history := []domain.ChatMessage{msg("a")}
	l.Replace(history)

	history[0].Body = "edited"

	assert.Equal(t, "body a", l.Messages()[0].Body)
}

func TestMessages_ReturnsCopy(t *testing.T) {
	l := New()
	l.Append(msg("a"))

	out := l.Messages()
	out[0].Body = "edited"

	assert.Equal(t, "body a", l.Messages()[0].Body)
}

func TestAppend_DoesNotDeduplicate(t *testing.T) {
	l := New()
	l.Append(msg("a"))
	l.Append(msg("a"))

	assert.Equal(t, 2, l.Len())
}

func TestReplace_Empty(t *testing.T) {
	l := New()
	l.Append(msg("a"))
	l.Replace(nil)

	assert.Zero(t, l.Len())
	assert.NotNil(t, l.Messages())
}
