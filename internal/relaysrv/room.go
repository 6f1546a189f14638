package relaysrv

import (
	"slices"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats and backpressure of a broadcast.
type PublishResult struct {
	SentTo  int
	Dropped []domain.UserID
}

type member struct {
	meta *domain.Member
	conn core.SignalConnection
}

// Room is a threadsafe in-memory chat room with its full history.
// It never closes adapter-owned resources.
type Room struct {
	ID domain.RoomID

	mu      sync.RWMutex
	members map[domain.UserID]*member
	history []domain.ChatMessage
}

func newRoom(id domain.RoomID) *Room {
	return &Room{
		ID:      id,
		members: make(map[domain.UserID]*member),
	}
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Join adds the member and announces it to the others. The returned history
// already includes the announcement; everything published after it reaches
// the new member as a live event.
func (r *Room) Join(m *domain.Member, conn core.SignalConnection, announce domain.ChatMessage, frame core.Frame) []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, announce)
	if frame != nil {
		r.broadcastLocked(m.ID, frame)
	}
	r.members[m.ID] = &member{meta: m, conn: conn}
	log.Info().Str("module", "relaysrv").Str("room_id", string(r.ID)).Str("user", string(m.ID)).Msg("member added")
	return slices.Clone(r.history)
}

// Publish records msg and sends its frame to every member.
func (r *Room) Publish(msg domain.ChatMessage, frame core.Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, msg)
	return r.broadcastLocked("", frame)
}

// Remove drops the member. It reports whether the member was typing.
func (r *Room) Remove(uid domain.UserID) (wasTyping, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[uid]
	if !ok {
		return false, false
	}
	delete(r.members, uid)
	log.Info().Str("module", "relaysrv").Str("room_id", string(r.ID)).Str("user", string(uid)).Msg("member removed")
	return m.meta.Typing, true
}

func (r *Room) History() []domain.ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.history)
}

// SetTyping updates one member's flag. changed is false when nothing moved.
func (r *Room) SetTyping(uid domain.UserID, typing bool) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[uid]
	if !ok || m.meta.Typing == typing {
		return false
	}
	m.meta.Typing = typing
	return true
}

// Disconnect closes the member's connection. Its read pump then removes it.
func (r *Room) Disconnect(uid domain.UserID) {
	r.mu.RLock()
	m, ok := r.members[uid]
	r.mu.RUnlock()
	if ok {
		m.conn.Close()
	}
}

// Presence is the aggregate typing state, user ids sorted.
func (r *Room) Presence() domain.TypingPresence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := domain.TypingPresence{UsersTyping: []domain.UserID{}}
	for id, m := range r.members {
		if m.meta.Typing {
			p.UsersTyping = append(p.UsersTyping, id)
		}
	}
	slices.Sort(p.UsersTyping)
	p.AnyoneTyping = len(p.UsersTyping) > 0
	return p
}

// Broadcast sends data to every member except from.
func (r *Room) Broadcast(from domain.UserID, data core.Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcastLocked(from, data)
}

func (r *Room) broadcastLocked(from domain.UserID, data core.Frame) PublishResult {
	res := PublishResult{}
	for id, m := range r.members {
		if id == from {
			continue
		}
		if err := m.conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "relaysrv").Str("room_id", string(r.ID)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
