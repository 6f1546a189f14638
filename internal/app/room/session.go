// Package room keeps the persisted (nickname, room) session and rejoins it
// automatically after a reload or a reconnect.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/app/clock"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultGrace          = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// ErrSuperseded is returned to a caller whose create/join completed after a
// newer room operation (or a leave) had already taken over.
var ErrSuperseded = errors.New("superseded by a newer room operation")

// Requester is the part of the connection manager room operations need.
type Requester interface {
	CreateChatRoom(ctx context.Context, nickname string, done func(domain.RoomID, error))
	JoinChatRoom(ctx context.Context, nickname string, roomID domain.RoomID, done func(domain.JoinResult, error))
}

// History receives the authoritative room history on join.
type History interface {
	Replace([]domain.ChatMessage)
}

type Options struct {
	Conn           Requester
	Store          core.SessionStore
	History        History
	Scheduler      clock.Scheduler
	Grace          time.Duration
	RequestTimeout time.Duration
	// OnChange is called after every state change, on the loop.
	OnChange func()
}

// Session is the {NoSession, Active} state machine. It is loop-bound.
type Session struct {
	conn    Requester
	store   core.SessionStore
	history History
	sched   clock.Scheduler
	grace   time.Duration
	timeout time.Duration
	notify  func()

	active  bool
	current domain.Session
	gen     uint64

	latched    bool
	graceTimer clock.Timer
	rejoining  bool
	lastErr    error
}

func NewSession(opts Options) *Session {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	return &Session{
		conn:    opts.Conn,
		store:   opts.Store,
		history: opts.History,
		sched:   opts.Scheduler,
		grace:   opts.Grace,
		timeout: opts.RequestTimeout,
		notify:  opts.OnChange,
	}
}

// Restore loads the persisted session. Half of a pair counts as no session and is removed.
func (s *Session) Restore(ctx context.Context) error {
	nick, okNick, err := s.store.Get(ctx, core.NicknameKey)
	if err != nil {
		return fmt.Errorf("restore nickname: %w", err)
	}
	room, okRoom, err := s.store.Get(ctx, core.RoomIDKey)
	if err != nil {
		return fmt.Errorf("restore room id: %w", err)
	}
	sess := domain.Session{Nickname: nick, RoomID: domain.RoomID(room)}
	if !okNick || !okRoom || !sess.Complete() {
		if okNick || okRoom {
			log.Warn().Str("module", "room").Msg("incomplete persisted session, clearing")
			s.forget(ctx)
		}
		return nil
	}
	s.active = true
	s.current = sess
	log.Info().Str("module", "room").Str("nickname", nick).Str("room_id", room).Msg("restored session")
	return nil
}

// OnConnected arms the automatic rejoin once per connection-established transition.
func (s *Session) OnConnected() {
	if s.latched {
		return
	}
	s.latched = true
	if !s.active {
		return
	}
	s.stopGrace()
	gen := s.gen
	s.graceTimer = s.sched.AfterFunc(s.grace, func() {
		s.graceTimer = nil
		if gen == s.gen {
			s.rejoin()
		}
	})
	log.Info().Str("module", "room").Dur("grace", s.grace).Msg("rejoin scheduled")
}

// OnDisconnected re-arms the latch and drops a rejoin still waiting out its grace.
func (s *Session) OnDisconnected() {
	s.latched = false
	s.stopGrace()
}

func (s *Session) rejoin() {
	sess := s.current
	gen := s.gen
	s.rejoining = true
	s.notify()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	log.Info().Str("module", "room").Str("room_id", string(sess.RoomID)).Msg("rejoin attempt")
	s.conn.JoinChatRoom(ctx, sess.Nickname, sess.RoomID, func(res domain.JoinResult, err error) {
		defer cancel()
		if gen != s.gen {
			return
		}
		s.rejoining = false
		if errors.Is(err, domain.ErrNotConnected) {
			log.Info().Str("module", "room").Msg("rejoin cut off by disconnect, retrying on next connection")
			s.notify()
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("module", "room").Str("room_id", string(sess.RoomID)).Msg("rejoin failed, clearing session")
			s.lastErr = joinError(sess.RoomID, err)
			s.clear(context.Background())
			s.notify()
			return
		}
		s.history.Replace(res.Messages)
		s.lastErr = nil
		s.notify()
	})
}

// CreateRoom asks the relay for a new room. The session is persisted only after success.
func (s *Session) CreateRoom(ctx context.Context, nickname string, done func(domain.RoomID, error)) {
	nickname, err := domain.NormalizeNickname(nickname)
	if err != nil {
		done("", err)
		return
	}
	gen := s.begin()
	s.conn.CreateChatRoom(ctx, nickname, func(id domain.RoomID, err error) {
		if err == nil && id == "" {
			err = errors.New("empty room id")
		}
		if err != nil {
			if !errors.Is(err, domain.ErrNotConnected) {
				err = fmt.Errorf("%w: %v", domain.ErrRoomCreationFailed, err)
			}
			log.Warn().Err(err).Str("module", "room").Msg("create room failed")
			done("", err)
			return
		}
		if gen != s.gen {
			done("", ErrSuperseded)
			return
		}
		s.history.Replace(nil)
		s.activate(context.WithoutCancel(ctx), domain.Session{Nickname: nickname, RoomID: id})
		log.Info().Str("module", "room").Str("room_id", string(id)).Msg("room created")
		done(id, nil)
	})
}

// JoinRoom joins an existing room. On a refused join any persisted session is cleared.
func (s *Session) JoinRoom(ctx context.Context, nickname string, roomID string, done func(error)) {
	nickname, err := domain.NormalizeNickname(nickname)
	if err != nil {
		done(err)
		return
	}
	id, err := domain.NormalizeRoomID(roomID)
	if err != nil {
		done(err)
		return
	}
	gen := s.begin()
	s.conn.JoinChatRoom(ctx, nickname, id, func(res domain.JoinResult, err error) {
		if gen != s.gen {
			done(ErrSuperseded)
			return
		}
		if err != nil {
			if errors.Is(err, domain.ErrNotConnected) {
				done(err)
				return
			}
			err = joinError(id, err)
			log.Warn().Err(err).Str("module", "room").Msg("join failed, clearing session")
			s.lastErr = err
			s.clear(context.WithoutCancel(ctx))
			s.notify()
			done(err)
			return
		}
		s.history.Replace(res.Messages)
		s.activate(context.WithoutCancel(ctx), domain.Session{Nickname: nickname, RoomID: id})
		log.Info().Str("module", "room").Str("room_id", string(id)).Int("history", len(res.Messages)).Msg("joined room")
		done(nil)
	})
}

// Leave drops the session and returns to the entry state.
func (s *Session) Leave(ctx context.Context) {
	s.begin()
	s.clear(ctx)
	s.lastErr = nil
	log.Info().Str("module", "room").Msg("left room")
	s.notify()
}

// begin invalidates in-flight operations and any pending automatic rejoin.
func (s *Session) begin() uint64 {
	s.gen++
	s.rejoining = false
	s.stopGrace()
	return s.gen
}

func (s *Session) activate(ctx context.Context, sess domain.Session) {
	s.active = true
	s.current = sess
	s.lastErr = nil
	if err := s.store.Set(ctx, core.NicknameKey, sess.Nickname); err != nil {
		log.Error().Err(err).Str("module", "room").Msg("persist nickname")
	}
	if err := s.store.Set(ctx, core.RoomIDKey, string(sess.RoomID)); err != nil {
		log.Error().Err(err).Str("module", "room").Msg("persist room id")
	}
	s.notify()
}

func (s *Session) clear(ctx context.Context) {
	s.active = false
	s.current = domain.Session{}
	s.rejoining = false
	s.stopGrace()
	s.forget(ctx)
}

func (s *Session) forget(ctx context.Context) {
	if err := s.store.Remove(ctx, core.NicknameKey); err != nil {
		log.Error().Err(err).Str("module", "room").Msg("remove nickname")
	}
	if err := s.store.Remove(ctx, core.RoomIDKey); err != nil {
		log.Error().Err(err).Str("module", "room").Msg("remove room id")
	}
}

func (s *Session) stopGrace() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

func joinError(id domain.RoomID, err error) error {
	var je *domain.JoinError
	if errors.As(err, &je) {
		return err
	}
	return &domain.JoinError{RoomID: id, Reason: err.Error()}
}

func (s *Session) Active() bool            { return s.active }
func (s *Session) Current() domain.Session { return s.current }

// RejoinPending is true while an automatic rejoin waits out its grace or is in flight.
func (s *Session) RejoinPending() bool { return s.graceTimer != nil || s.rejoining }

// LastErr is the most recent create/join failure shown to the user, if any.
func (s *Session) LastErr() error { return s.lastErr }
