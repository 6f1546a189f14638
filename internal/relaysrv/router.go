package relaysrv

import (
	"context"
	"net/http"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Router exposes the relay websocket at /ws plus a room listing for debugging.
func (s *Server) Router(ctx context.Context, mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/ws", func(c *gin.Context) {
		s.HandleWS(ctx, c)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Rooms.List())
	})
	r.DELETE("/rooms/:id", func(c *gin.Context) {
		if !s.Rooms.Close(domain.RoomID(c.Param("id"))) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room does not exist"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	log.Info().Str("module", "relaysrv").Msg("router setup")
	return r
}
