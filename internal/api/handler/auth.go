package handler

import (
	"github.com/gin-gonic/gin"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/metrics"
	"liveroom/backend/internal/models"
)

const identityKey = "identity"

// RequireIdentity rejects requests without a valid token before any handler
// runs. For /ws this means the upgrade never happens.
func (h *Handler) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := h.Auth.AuthenticateRequest(c.Request)
		if err != nil {
			metrics.AuthFailures.Inc()
			h.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("authentication failed")
			writeError(c, apperr.ErrAuthenticationFailed)
			c.Abort()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) models.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(models.Identity)
	return identity
}
