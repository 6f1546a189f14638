package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	client  Client
	timeout time.Duration
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

type messageRequest struct {
	Body string `json:"body"`
}

type inputRequest struct {
	Text string `json:"text"`
}

func (h *handlers) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *handlers) state(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	v, err := h.client.View(ctx)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) createRoom(c *gin.Context) {
	var req nicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid nickname"})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	id, err := h.client.CreateRoom(ctx, req.Nickname)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"roomId": id})
}

func (h *handlers) joinRoom(c *gin.Context) {
	var req nicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid nickname"})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.client.JoinRoom(ctx, req.Nickname, c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": c.Param("id")})
}

func (h *handlers) leave(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.client.Leave(ctx); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	delivered, err := h.client.SendChat(ctx, req.Body)
	if err != nil {
		abortWith(c, err)
		return
	}
	status := http.StatusAccepted
	if !delivered {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"delivered": delivered})
}

func (h *handlers) input(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid text"})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.client.UpdateInput(ctx, req.Text); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// events streams a "view" event now and after every state change.
func (h *handlers) events(c *gin.Context) {
	ch, unsubscribe := h.client.Subscribe()
	defer unsubscribe()
	ctx := c.Request.Context()
	sid := c.GetString(clientTokenKey)
	log.Info().Str("module", "adapters.http").Str("sid", sid).Msg("event stream opened")

	first := true
	c.Stream(func(w io.Writer) bool {
		if !first {
			select {
			case <-ctx.Done():
				return false
			case <-ch:
			}
		}
		first = false
		v, err := h.client.View(ctx)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("sid", sid).Msg("event stream closed")
			return false
		}
		c.SSEvent("view", v)
		return true
	})
}
