package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/app/room"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNicknameEmpty),
		errors.Is(err, domain.ErrNicknameTooLong),
		errors.Is(err, domain.ErrRoomIDEmpty),
		errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, orch.ErrNoRoom), errors.Is(err, room.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRoomCreationFailed), errors.Is(err, domain.ErrJoinFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrReconnectExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	status := statusOf(err)
	ev := log.Warn()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).
		Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
