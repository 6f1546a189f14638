package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WritePump drains the outbound queue and keeps the peer alive with pings.
// It must be the only writer on the socket.
func (c *Conn) WritePump(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", c.opts.Module).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", c.opts.Module).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", c.opts.Module).Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", c.opts.Module).Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", c.opts.Module).Msg("ping failed")
				c.Close()
				return
			}
		}
	}
}

// ReadPump decodes packets and hands them to handle until the socket fails.
// The returned error is the read error that ended it. Undecodable frames are skipped.
func (c *Conn) ReadPump(ctx context.Context, handle func(core.Packet)) error {
	pongWait := c.opts.PingPeriod * 2
	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		var p core.Packet
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", c.opts.Module).Msg("bad json")
			continue
		}
		handle(p)
	}
}
