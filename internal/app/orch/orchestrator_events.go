package orch

import (
	"encoding/json"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) OnConnected() {
	o.Rooms.OnConnected()
	o.changed()
}

func (o *Orchestrator) OnDisconnected() {
	o.Typing.ClearRemote()
	o.Rooms.OnDisconnected()
	o.changed()
}

func (o *Orchestrator) OnExhausted() {
	o.changed()
}

// OnEnvelope routes an inbound relay event by type.
func (o *Orchestrator) OnEnvelope(env domain.Envelope) {
	switch env.Type {
	case domain.SendMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("bad chat message")
			return
		}
		if !o.Rooms.Active() {
			log.Debug().Str("module", "orch").Str("perm_id", msg.PermID).Msg("chat message outside a room, ignored")
			return
		}
		o.Log.Append(msg)

	case domain.SetTypingPresence:
		var p domain.TypingPresence
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("bad typing presence")
			return
		}
		o.Typing.ApplyRemote(p)

	case domain.UserIDAssigned:
		var a domain.UserIDAssignment
		if err := json.Unmarshal(env.Data, &a); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("bad user id assignment")
			return
		}
		o.Typing.SetSelf(a.UserID)
		log.Info().Str("module", "orch").Str("user_id", string(a.UserID)).Msg("user id assigned")

	default:
		log.Warn().Str("module", "orch").Str("type", string(env.Type)).Msg("unknown event type")
		return
	}
	o.changed()
}
