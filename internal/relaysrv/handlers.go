package relaysrv

import (
	"encoding/json"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func (s *Server) handle(p *peer, pk core.Packet) {
	switch pk.Type {
	case domain.CreateChatRoom:
		s.handleCreate(p, pk)
	case domain.JoinChatRoom:
		s.handleJoin(p, pk)
	case domain.SendMessage:
		s.handleChat(p, pk.Data)
	case domain.SetTypingPresence:
		s.handleTyping(p, pk.Data)
	default:
		log.Warn().Str("module", "relaysrv").Str("type", string(pk.Type)).Msg("unknown packet")
	}
}

func (s *Server) reply(p *peer, pk core.Packet, payload any) {
	if err := p.conn.SendPacket(pk.Type, pk.CallbackID, payload); err != nil {
		log.Warn().Err(err).Str("module", "relaysrv").Str("user", string(p.id)).Msg("reply dropped")
	}
}

func (s *Server) handleCreate(p *peer, pk core.Packet) {
	var req domain.CreateRoomRequest
	if err := json.Unmarshal(pk.Data, &req); err != nil {
		s.reply(p, pk, domain.CreateRoomReply{Error: "bad_payload"})
		return
	}
	nick, err := domain.NormalizeNickname(req.Nickname)
	if err != nil {
		s.reply(p, pk, domain.CreateRoomReply{Error: err.Error()})
		return
	}
	s.leave(p)
	room := s.Rooms.Create()
	p.nickname = nick
	p.room = room
	// The creator starts with an empty history, so it is added silently.
	room.Join(domain.NewMember(p.id, nick), p.conn, s.systemMessage(nick, nick+" created the room"), nil)
	s.reply(p, pk, domain.CreateRoomReply{RoomID: room.ID})
}

func (s *Server) handleJoin(p *peer, pk core.Packet) {
	var req domain.JoinRoomRequest
	if err := json.Unmarshal(pk.Data, &req); err != nil {
		s.reply(p, pk, domain.JoinRoomReply{Error: "bad_payload"})
		return
	}
	nick, err := domain.NormalizeNickname(req.Nickname)
	if err != nil {
		s.reply(p, pk, domain.JoinRoomReply{Error: err.Error()})
		return
	}
	room, ok := s.Rooms.Get(req.RoomID)
	if !ok {
		log.Warn().Str("module", "relaysrv").Str("room_id", string(req.RoomID)).Msg("room does not exist")
		s.reply(p, pk, domain.JoinRoomReply{Error: "room does not exist"})
		return
	}
	if p.room != room {
		s.leave(p)
	} else {
		room.Remove(p.id)
	}

	announce := s.systemMessage(nick, nick+" joined the room")
	frame, err := encode(domain.SendMessage, "", announce)
	if err != nil {
		log.Error().Err(err).Str("module", "relaysrv").Msg("encode announce")
		return
	}
	p.nickname = nick
	p.room = room
	history := room.Join(domain.NewMember(p.id, nick), p.conn, announce, frame)
	log.Info().Str("module", "relaysrv").Str("user", string(p.id)).Str("room_id", string(room.ID)).Int("history", len(history)).Msg("join")
	s.reply(p, pk, domain.JoinRoomReply{Messages: history})
}

func (s *Server) handleChat(p *peer, data []byte) {
	if p.room == nil {
		log.Warn().Str("module", "relaysrv").Str("user", string(p.id)).Msg("chat outside a room")
		return
	}
	var in domain.OutgoingChat
	if err := json.Unmarshal(data, &in); err != nil || in.Body == "" {
		log.Warn().Str("module", "relaysrv").Str("user", string(p.id)).Msg("bad chat payload")
		return
	}
	if !s.limiter.Allow(p.id) {
		log.Warn().Str("module", "relaysrv").Str("user", string(p.id)).Msg("rate limited")
		return
	}
	msg := domain.ChatMessage{
		UserNickname: p.nickname,
		Body:         in.Body,
		PermID:       uuid.NewString(),
		Timestamp:    s.now().UnixMilli(),
	}
	frame, err := encode(domain.SendMessage, "", msg)
	if err != nil {
		log.Error().Err(err).Str("module", "relaysrv").Msg("encode chat")
		return
	}
	s.applyPolicy(p.room, p.room.Publish(msg, frame))
}

func (s *Server) handleTyping(p *peer, data []byte) {
	if p.room == nil {
		return
	}
	var sig domain.TypingSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		log.Warn().Str("module", "relaysrv").Str("user", string(p.id)).Msg("bad typing payload")
		return
	}
	if p.room.SetTyping(p.id, sig.Typing) {
		s.broadcastPresence(p.room)
	}
}

func (s *Server) broadcastPresence(room *Room) {
	frame, err := encode(domain.SetTypingPresence, "", room.Presence())
	if err != nil {
		log.Error().Err(err).Str("module", "relaysrv").Msg("encode presence")
		return
	}
	s.applyPolicy(room, room.Broadcast("", frame))
}

// leave takes p out of its current room, announcing the departure.
func (s *Server) leave(p *peer) {
	room := p.room
	if room == nil {
		return
	}
	p.room = nil
	wasTyping, ok := room.Remove(p.id)
	if !ok {
		return
	}
	msg := s.systemMessage(p.nickname, p.nickname+" left the room")
	if frame, err := encode(domain.SendMessage, "", msg); err == nil {
		s.applyPolicy(room, room.Publish(msg, frame))
	}
	if wasTyping {
		s.broadcastPresence(room)
	}
}
