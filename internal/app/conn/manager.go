// Package conn owns the relay transport and presents one logical connection
// state across reconnects.
//
// A Manager is bound to a single thread of control (see loop.Loop): every
// method and every Observer callback runs there. Transport callbacks are
// re-posted onto it through Options.Post.
package conn

import (
	"context"
	"time"

	"github.com/dkeye/Chat/internal/app/clock"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Observer is notified of connection transitions and inbound envelopes.
type Observer interface {
	OnConnected()
	OnDisconnected()
	OnExhausted()
	OnEnvelope(domain.Envelope)
}

// Policy bounds automatic reconnection. Delays double per attempt, no jitter.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, InitialDelay: time.Second}
}

type Options struct {
	Factory   core.TransportFactory
	Scheduler clock.Scheduler
	Post      func(func())
	Policy    Policy
	Observer  Observer
}

type Manager struct {
	factory core.TransportFactory
	sched   clock.Scheduler
	post    func(func())
	policy  Policy
	obs     Observer

	state   domain.ConnectionState
	client  core.Transport
	handler *handler

	attempts  int
	delay     time.Duration
	retry     clock.Timer
	exhausted bool
	closed    bool

	// Envelopes that arrive while a create/join exchange is in flight are
	// held until its result has been applied, so history lands first.
	inflight int
	held     []domain.Envelope
}

func NewManager(opts Options) *Manager {
	if opts.Policy.MaxAttempts == 0 && opts.Policy.InitialDelay == 0 {
		opts.Policy = DefaultPolicy()
	}
	return &Manager{
		factory: opts.Factory,
		sched:   opts.Scheduler,
		post:    opts.Post,
		policy:  opts.Policy,
		obs:     opts.Observer,
		delay:   opts.Policy.InitialDelay,
	}
}

// handler binds transport callbacks to the client generation that produced them.
// Callbacks from a client that has since been replaced or torn down are ignored.
type handler struct {
	m *Manager
}

func (h *handler) OnConnectionReady() {
	h.m.post(func() {
		if h.m.handler == h {
			h.m.onConnectionReady()
		}
	})
}

func (h *handler) OnClose() {
	h.m.post(func() {
		if h.m.handler == h {
			h.m.onClose()
		}
	})
}

func (h *handler) OnMessage(env domain.Envelope) {
	h.m.post(func() {
		if h.m.handler != h || h.m.obs == nil {
			return
		}
		if h.m.inflight > 0 {
			h.m.held = append(h.m.held, env)
			return
		}
		h.m.obs.OnEnvelope(env)
	})
}

// Connect creates a transport client unless one is live or a retry is pending.
func (m *Manager) Connect() {
	if m.closed || m.exhausted || m.client != nil || m.retry != nil {
		return
	}
	m.state = domain.Connecting
	h := &handler{m: m}
	m.handler = h
	log.Info().Str("module", "conn").Int("attempt", m.attempts).Msg("connecting")
	c := m.factory(h)
	if m.handler != h {
		// The handshake already failed synchronously and onClose moved on.
		c.Teardown()
		return
	}
	m.client = c
}

func (m *Manager) onConnectionReady() {
	m.state = domain.Connected
	m.attempts = 0
	m.delay = m.policy.InitialDelay
	log.Info().Str("module", "conn").Msg("connection ready")
	if m.obs != nil {
		m.obs.OnConnected()
	}
}

func (m *Manager) onClose() {
	m.state = domain.Disconnected
	m.release()
	if m.obs != nil {
		m.obs.OnDisconnected()
	}

	if m.attempts >= m.policy.MaxAttempts {
		m.exhausted = true
		log.Error().Str("module", "conn").Int("attempts", m.attempts).Msg("reconnect attempts exhausted")
		if m.obs != nil {
			m.obs.OnExhausted()
		}
		return
	}

	d := m.delay
	m.attempts++
	m.delay *= 2
	log.Info().Str("module", "conn").Int("attempt", m.attempts).Dur("delay", d).Msg("connection closed, retry scheduled")
	m.retry = m.sched.AfterFunc(d, func() {
		m.retry = nil
		m.Connect()
	})
}

// release drops the client together with any envelopes it produced that are
// still held; they must not be replayed after the disconnect.
func (m *Manager) release() {
	m.handler = nil
	m.held = nil
	if m.client != nil {
		m.client.Teardown()
		m.client = nil
	}
}

// Send forwards an envelope only while Connected; otherwise it is dropped.
func (m *Manager) Send(t domain.MessageType, payload any) error {
	if m.state != domain.Connected || m.client == nil {
		log.Warn().Str("module", "conn").Str("type", string(t)).Msg("send dropped: not connected")
		return domain.ErrNotConnected
	}
	if err := m.client.SendMessage(t, payload); err != nil {
		log.Error().Err(err).Str("module", "conn").Str("type", string(t)).Msg("send failed")
		return err
	}
	return nil
}

// CreateChatRoom runs the exchange off the loop and posts done back onto it.
func (m *Manager) CreateChatRoom(ctx context.Context, nickname string, done func(domain.RoomID, error)) {
	c, err := m.connectedClient()
	if err != nil {
		done("", err)
		return
	}
	m.inflight++
	go func() {
		id, err := c.CreateChatRoom(ctx, nickname)
		m.post(func() {
			done(id, err)
			m.settle()
		})
	}()
}

// JoinChatRoom runs the exchange off the loop and posts done back onto it.
func (m *Manager) JoinChatRoom(ctx context.Context, nickname string, roomID domain.RoomID, done func(domain.JoinResult, error)) {
	c, err := m.connectedClient()
	if err != nil {
		done(domain.JoinResult{}, err)
		return
	}
	m.inflight++
	go func() {
		res, err := c.JoinChatRoom(ctx, nickname, roomID)
		m.post(func() {
			done(res, err)
			m.settle()
		})
	}()
}

// settle closes one exchange and releases held envelopes once none remain.
func (m *Manager) settle() {
	m.inflight--
	if m.inflight > 0 {
		return
	}
	held := m.held
	m.held = nil
	for _, env := range held {
		if m.obs != nil {
			m.obs.OnEnvelope(env)
		}
	}
}

func (m *Manager) connectedClient() (core.Transport, error) {
	if m.state != domain.Connected || m.client == nil {
		log.Warn().Str("module", "conn").Msg("request refused: not connected")
		return nil, domain.ErrNotConnected
	}
	return m.client, nil
}

// Teardown releases the transport for good. It never schedules a reconnect.
func (m *Manager) Teardown() {
	m.closed = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.release()
	m.state = domain.Disconnected
	log.Info().Str("module", "conn").Msg("teardown")
}

func (m *Manager) State() domain.ConnectionState { return m.state }
func (m *Manager) Connected() bool               { return m.state == domain.Connected }
func (m *Manager) Exhausted() bool               { return m.exhausted }
func (m *Manager) Attempts() int                 { return m.attempts }
func (m *Manager) Delay() time.Duration          { return m.delay }
