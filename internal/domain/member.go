package domain

// Member is a participant of a room as the relay sees it.
// No transport or lifecycle logic here.
type Member struct {
	ID       UserID
	Nickname string
	Typing   bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id UserID, nickname string) *Member {
	return &Member{ID: id, Nickname: nickname}
}
