// Package signal frames relay packets over a gorilla websocket: a buffered
// outbound queue drained by a single writer, and a reader loop.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	DefaultPingPeriod = 30 * time.Second
	DefaultReadLimit  = 64 << 10
	sendBuffer        = 32
	writeWait         = 5 * time.Second
)

type Options struct {
	PingPeriod time.Duration
	ReadLimit  int64
	// Module is the zerolog module name used by the pumps.
	Module string
}

// Conn is a websocket with a bounded outbound queue. It implements
// core.SignalConnection.
type Conn struct {
	conn *websocket.Conn
	send chan core.Frame
	opts Options

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*Conn)(nil)

func NewConn(ws *websocket.Conn, opts Options) *Conn {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = DefaultPingPeriod
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.Module == "" {
		opts.Module = "signal"
	}
	return &Conn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
		opts: opts,
	}
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// SendPacket wraps payload as the data of a packet of type t.
func (c *Conn) SendPacket(t domain.MessageType, callbackID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t, err)
	}
	b, err := json.Marshal(core.Packet{Type: t, Data: data, CallbackID: callbackID})
	if err != nil {
		return fmt.Errorf("marshal packet: %w", err)
	}
	return c.TrySend(b)
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
