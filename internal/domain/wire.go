package domain

// Request types. Replies echo the request's callback id.
const (
	CreateChatRoom MessageType = "createChatRoom"
	JoinChatRoom   MessageType = "joinChatRoom"
)

type CreateRoomRequest struct {
	Nickname string `json:"nickname"`
}

type CreateRoomReply struct {
	RoomID RoomID `json:"roomId,omitempty"`
	Error  string `json:"error,omitempty"`
}

type JoinRoomRequest struct {
	Nickname string `json:"nickname"`
	RoomID   RoomID `json:"roomId"`
}

type JoinRoomReply struct {
	Messages []ChatMessage `json:"messages"`
	Error    string        `json:"error,omitempty"`
}
