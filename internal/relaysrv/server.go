// Package relaysrv is a small in-memory chat relay speaking the client's wire
// protocol. It backs local development and the transport's integration tests.
package relaysrv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	PingPeriod time.Duration
	ReadLimit  int64
	// RateLimit chat messages per user per RateInterval; zero disables it.
	RateLimit    int
	RateInterval time.Duration
	// Policy handles members that cannot keep up; SimplePolicy by default.
	Policy Policy
}

type Server struct {
	Rooms   *Rooms
	limiter *RateLimiter
	policy  Policy
	opts    Options
	now     func() time.Time
}

func New(opts Options) *Server {
	if opts.RateInterval <= 0 {
		opts.RateInterval = time.Second
	}
	if opts.Policy == nil {
		opts.Policy = SimplePolicy{}
	}
	return &Server{
		Rooms:   NewRooms(),
		limiter: NewRateLimiter(opts.RateLimit, opts.RateInterval),
		policy:  opts.Policy,
		opts:    opts,
		now:     time.Now,
	}
}

// peer is one websocket client. Its fields are only touched by its read pump.
type peer struct {
	id       domain.UserID
	nickname string
	room     *Room
	conn     *signal.Conn
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relaysrv").Msg("ws upgrade")
		return
	}
	p := &peer{
		id: domain.UserID(uuid.NewString()),
		conn: signal.NewConn(ws, signal.Options{
			PingPeriod: s.opts.PingPeriod,
			ReadLimit:  s.opts.ReadLimit,
			Module:     "relaysrv",
		}),
	}
	log.Info().Str("module", "relaysrv").Str("user", string(p.id)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go p.conn.WritePump(ctx)
	go func() {
		defer cancel()
		defer s.disconnect(p)
		if err := p.conn.SendPacket(domain.UserIDAssigned, "", domain.UserIDAssignment{UserID: p.id}); err != nil {
			log.Error().Err(err).Str("module", "relaysrv").Msg("send user id")
			return
		}
		err := p.conn.ReadPump(ctx, func(pk core.Packet) { s.handle(p, pk) })
		log.Info().Err(err).Str("module", "relaysrv").Str("user", string(p.id)).Msg("readPump closing")
	}()
}

func (s *Server) disconnect(p *peer) {
	s.leave(p)
	s.limiter.Forget(p.id)
	p.conn.Close()
}

func encode(t domain.MessageType, callbackID string, payload any) (core.Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", t, err)
	}
	return json.Marshal(core.Packet{Type: t, Data: data, CallbackID: callbackID})
}

func (s *Server) systemMessage(nickname, body string) domain.ChatMessage {
	return domain.ChatMessage{
		IsSystemMessage: true,
		UserNickname:    nickname,
		Body:            body,
		PermID:          uuid.NewString(),
		Timestamp:       s.now().UnixMilli(),
	}
}
