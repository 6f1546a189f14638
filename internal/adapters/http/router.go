// Package http is the local gateway a browser UI drives the chat client
// through: JSON commands, a server-sent event stream of views, static files.
package http

import (
	"context"

	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client is the chat facade the gateway drives.
type Client interface {
	View(ctx context.Context) (orch.View, error)
	CreateRoom(ctx context.Context, nickname string) (domain.RoomID, error)
	JoinRoom(ctx context.Context, nickname, roomID string) error
	Leave(ctx context.Context) error
	SendChat(ctx context.Context, body string) (bool, error)
	UpdateInput(ctx context.Context, text string) error
	Subscribe() (<-chan struct{}, func())
}

const clientTokenKey = "client_token"

// ClientTokenMiddleware tags each browser tab's session with a stable token
// so gateway logs can be correlated.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, client Client) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ChatSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{client: client, timeout: cfg.RequestTimeout}
	api := r.Group("/api")
	api.GET("/state", h.state)
	api.GET("/events", h.events)
	api.POST("/rooms", h.createRoom)
	api.POST("/rooms/:id/join", h.joinRoom)
	api.POST("/leave", h.leave)
	api.POST("/messages", h.sendMessage)
	api.PUT("/input", h.input)

	return r
}
