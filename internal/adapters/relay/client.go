// Package relay is the websocket transport to the chat relay. One Client is
// one connection attempt; reconnecting is the connection manager's job.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrConnectionLost is returned to requests cut off by a dropped connection.
var ErrConnectionLost = fmt.Errorf("%w: relay connection lost", domain.ErrNotConnected)

type Config struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	PingPeriod       time.Duration
	ReadLimit        int64
}

// Dialer produces Clients for the connection manager.
type Dialer struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewDialer(cfg Config) *Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Dialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Factory starts dialing in the background and returns immediately.
// It satisfies core.TransportFactory.
func (d *Dialer) Factory(h core.EventHandler) core.Transport {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		h:       h,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]chan core.Packet),
	}
	go c.run(d)
	return c
}

type Client struct {
	h      core.EventHandler
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *signal.Conn
	torn    bool
	pending map[string]chan core.Packet

	once sync.Once
}

var _ core.Transport = (*Client)(nil)

func (c *Client) run(d *Dialer) {
	ws, _, err := d.dialer.DialContext(c.ctx, d.cfg.URL, d.cfg.Header)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.relay").Str("url", d.cfg.URL).Msg("dial failed")
		c.shutdown(true)
		return
	}
	conn := signal.NewConn(ws, signal.Options{
		PingPeriod: d.cfg.PingPeriod,
		ReadLimit:  d.cfg.ReadLimit,
		Module:     "adapters.relay",
	})

	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	log.Info().Str("module", "adapters.relay").Str("url", d.cfg.URL).Msg("connected")
	go conn.WritePump(c.ctx)
	c.h.OnConnectionReady()

	err = conn.ReadPump(c.ctx, c.dispatch)
	log.Info().Err(err).Str("module", "adapters.relay").Msg("readPump closing")
	c.shutdown(true)
}

func (c *Client) dispatch(p core.Packet) {
	if p.CallbackID == "" {
		c.h.OnMessage(domain.Envelope{Type: p.Type, Data: p.Data})
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[p.CallbackID]
	delete(c.pending, p.CallbackID)
	c.mu.Unlock()
	if !ok {
		log.Warn().Str("module", "adapters.relay").Str("callback_id", p.CallbackID).Msg("reply without a pending request")
		return
	}
	ch <- p
}

// shutdown runs once. OnClose is reported only if the client was not torn down.
func (c *Client) shutdown(report bool) {
	c.once.Do(func() {
		c.cancel()
		c.mu.Lock()
		conn := c.conn
		torn := c.torn
		c.pending = make(map[string]chan core.Packet)
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if report && !torn {
			c.h.OnClose()
		}
	})
}

func (c *Client) Teardown() {
	c.mu.Lock()
	c.torn = true
	c.mu.Unlock()
	c.shutdown(false)
}

func (c *Client) live() (*signal.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.torn || c.conn.Closed() {
		return nil, domain.ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) SendMessage(t domain.MessageType, payload any) error {
	conn, err := c.live()
	if err != nil {
		return err
	}
	return sendErr(conn.SendPacket(t, "", payload))
}

func sendErr(err error) error {
	if errors.Is(err, signal.ErrClosed) {
		return domain.ErrNotConnected
	}
	return err
}

// request sends a packet with a fresh callback id and waits for its reply.
func (c *Client) request(ctx context.Context, t domain.MessageType, payload any) (json.RawMessage, error) {
	conn, err := c.live()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ch := make(chan core.Packet, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := conn.SendPacket(t, id, payload); err != nil {
		return nil, sendErr(err)
	}
	select {
	case p := <-ch:
		return p.Data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", t, ctx.Err())
	case <-c.ctx.Done():
		return nil, ErrConnectionLost
	}
}

func (c *Client) CreateChatRoom(ctx context.Context, nickname string) (domain.RoomID, error) {
	data, err := c.request(ctx, domain.CreateChatRoom, domain.CreateRoomRequest{Nickname: nickname})
	if err != nil {
		return "", err
	}
	var reply domain.CreateRoomReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("decode create reply: %w", err)
	}
	if reply.Error != "" {
		return "", errors.New(reply.Error)
	}
	return reply.RoomID, nil
}

func (c *Client) JoinChatRoom(ctx context.Context, nickname string, roomID domain.RoomID) (domain.JoinResult, error) {
	data, err := c.request(ctx, domain.JoinChatRoom, domain.JoinRoomRequest{Nickname: nickname, RoomID: roomID})
	if err != nil {
		return domain.JoinResult{}, err
	}
	var reply domain.JoinRoomReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return domain.JoinResult{}, fmt.Errorf("decode join reply: %w", err)
	}
	if reply.Error != "" {
		return domain.JoinResult{}, &domain.JoinError{RoomID: roomID, Reason: reply.Error}
	}
	return domain.JoinResult{Messages: reply.Messages}, nil
}
