package relaysrv

import (
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a member whose outbound queue is full.
type Policy interface {
	OnBackPressure(room *Room, uid domain.UserID) BackpressureAction
}

// SimplePolicy disconnects slow members; their client reconnects and rejoins.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*Room, domain.UserID) BackpressureAction {
	return KickMember
}

func (s *Server) applyPolicy(room *Room, res PublishResult) {
	for _, uid := range res.Dropped {
		switch s.policy.OnBackPressure(room, uid) {
		case KickMember:
			log.Warn().Str("module", "relaysrv").Str("room_id", string(room.ID)).Str("user", string(uid)).Msg("kicking slow member")
			room.Disconnect(uid)
		case NoAction:
		}
	}
}
