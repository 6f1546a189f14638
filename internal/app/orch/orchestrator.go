// Package orch binds the connection, room session, typing tracker and message
// log together and exposes them as a goroutine-safe client facade.
package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/app/chatlog"
	"github.com/dkeye/Chat/internal/app/clock"
	"github.com/dkeye/Chat/internal/app/conn"
	"github.com/dkeye/Chat/internal/app/loop"
	"github.com/dkeye/Chat/internal/app/room"
	"github.com/dkeye/Chat/internal/app/typing"
	"github.com/dkeye/Chat/internal/core"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Policy         conn.Policy
	Grace          time.Duration
	TypingTimeout  time.Duration
	RequestTimeout time.Duration
	// Scheduler overrides the wall-clock scheduler; it must only be driven from the loop.
	Scheduler clock.Scheduler
}

// Orchestrator owns the loop. Components below it are only touched from there.
type Orchestrator struct {
	Loop   *loop.Loop
	Conn   *conn.Manager
	Rooms  *room.Session
	Typing *typing.Tracker
	Log    *chatlog.Log

	requestTimeout time.Duration

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

func New(factory core.TransportFactory, store core.SessionStore, cfg Config) *Orchestrator {
	l := loop.New(256)
	sched := cfg.Scheduler
	if sched == nil {
		sched = clock.NewReal(l.Post)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = room.DefaultRequestTimeout
	}

	o := &Orchestrator{
		Loop:           l,
		Log:            chatlog.New(),
		requestTimeout: cfg.RequestTimeout,
		subs:           make(map[chan struct{}]struct{}),
	}
	o.Conn = conn.NewManager(conn.Options{
		Factory:   factory,
		Scheduler: sched,
		Post:      l.Post,
		Policy:    cfg.Policy,
		Observer:  o,
	})
	o.Typing = typing.NewTracker(o.Conn, sched, cfg.TypingTimeout)
	o.Rooms = room.NewSession(room.Options{
		Conn:           o.Conn,
		Store:          store,
		History:        o.Log,
		Scheduler:      sched,
		Grace:          cfg.Grace,
		RequestTimeout: cfg.RequestTimeout,
		OnChange:       o.changed,
	})
	return o
}

// Run drives the loop until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	o.Loop.Run(ctx)
}

// Start restores any persisted session and opens the relay connection.
func (o *Orchestrator) Start(ctx context.Context) error {
	var err error
	if doErr := o.Loop.Do(ctx, func() {
		if err = o.Rooms.Restore(ctx); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("restore session")
		}
		o.Conn.Connect()
		o.changed()
	}); doErr != nil {
		return doErr
	}
	return err
}

// Close tears the transport down. It does not stop the loop.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.Loop.Do(ctx, func() {
		o.Typing.Settle()
		o.Conn.Teardown()
		o.changed()
	})
}

// Subscribe returns a channel signalled after every state change.
// Signals are coalesced; a slow reader sees the latest View on its next read.
func (o *Orchestrator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	o.subsMu.Lock()
	o.subs[ch] = struct{}{}
	o.subsMu.Unlock()
	return ch, func() {
		o.subsMu.Lock()
		delete(o.subs, ch)
		o.subsMu.Unlock()
	}
}

func (o *Orchestrator) changed() {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	for ch := range o.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
