package relaysrv

import (
	"sync"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RoomInfo is a read-only listing entry.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
	Messages    int           `json:"messages"`
}

// Rooms keeps every room for the life of the relay. Empty rooms are kept so
// a reloading client can rejoin them.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.RoomID]*Room)}
}

func (rs *Rooms) Create() *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	id := domain.RoomID(uuid.NewString())
	r := newRoom(id)
	rs.rooms[id] = r
	log.Info().Str("module", "relaysrv").Str("room_id", string(id)).Msg("room created")
	return r
}

func (rs *Rooms) Get(id domain.RoomID) (*Room, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	r, ok := rs.rooms[id]
	return r, ok
}

// Close forgets a room so it can no longer be joined. Current members keep
// talking in it until they leave.
func (rs *Rooms) Close(id domain.RoomID) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.rooms[id]; !ok {
		return false
	}
	delete(rs.rooms, id)
	log.Info().Str("module", "relaysrv").Str("room_id", string(id)).Msg("room closed")
	return true
}

func (rs *Rooms) List() []RoomInfo {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]RoomInfo, 0, len(rs.rooms))
	for id, r := range rs.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: r.MemberCount(), Messages: len(r.History())})
	}
	return out
}
