// Package typing debounces the local typing signal and decides whether to
// show that someone else in the room is typing.
package typing

import (
	"time"

	"github.com/dkeye/Chat/internal/app/clock"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = time.Second

// Sender delivers the outbound typing signal, normally conn.Manager.
type Sender interface {
	Send(t domain.MessageType, payload any) error
}

// Tracker emits SET_TYPING_PRESENCE only on Idle<->Typing edges.
type Tracker struct {
	sender  Sender
	sched   clock.Scheduler
	timeout time.Duration

	typing bool
	timer  clock.Timer

	remote domain.TypingPresence
	self   domain.UserID
}

func NewTracker(sender Sender, sched clock.Scheduler, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{sender: sender, sched: sched, timeout: timeout}
}

// Input reacts to the current content of the compose field.
func (t *Tracker) Input(text string) {
	if text == "" {
		t.Settle()
		return
	}
	t.stopTimer()
	if !t.typing {
		t.typing = true
		t.emit(true)
	}
	t.timer = t.sched.AfterFunc(t.timeout, t.expire)
}

// Settle returns to Idle, emitting stop if the machine was Typing.
func (t *Tracker) Settle() {
	t.stopTimer()
	if t.typing {
		t.typing = false
		t.emit(false)
	}
}

func (t *Tracker) expire() {
	t.timer = nil
	if t.typing {
		t.typing = false
		t.emit(false)
	}
}

func (t *Tracker) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Tracker) emit(typing bool) {
	// Not connected is logged by the sender; local state moves on regardless.
	if err := t.sender.Send(domain.SetTypingPresence, domain.TypingSignal{Typing: typing}); err != nil {
		log.Debug().Err(err).Str("module", "typing").Bool("typing", typing).Msg("typing signal not delivered")
	}
}

// Typing reports the local flag.
func (t *Tracker) Typing() bool { return t.typing }

// ApplyRemote replaces the remote aggregate state wholesale.
func (t *Tracker) ApplyRemote(p domain.TypingPresence) {
	t.remote = domain.TypingPresence{
		AnyoneTyping: p.AnyoneTyping,
		UsersTyping:  append([]domain.UserID(nil), p.UsersTyping...),
	}
}

// ClearRemote forgets remote state, as on disconnect.
func (t *Tracker) ClearRemote() {
	t.remote = domain.TypingPresence{}
}

func (t *Tracker) SetSelf(id domain.UserID) { t.self = id }
func (t *Tracker) Self() domain.UserID      { return t.self }

// SomeoneTyping is true when the relay reports typing and the typist is not us.
func (t *Tracker) SomeoneTyping() bool {
	return t.remote.AnyoneTyping && !t.remote.Includes(t.self)
}
