package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Register mounts every route on the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", h.RequireIdentity(), h.ServeWebSocket)

	api := r.Group("/api", h.RequireIdentity())
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.GET("/sessions/code/:code", h.GetSessionByCode)
	api.PATCH("/sessions/:id/status", h.UpdateStatus)
	api.GET("/sessions/:id/messages", h.ListMessages)
	api.DELETE("/sessions/:id/messages", h.PurgeMessages)
	api.GET("/sessions/:id/recordings", h.ListRecordings)

	if h.Webhooks != nil {
		r.POST("/webhooks/livekit", h.LiveKitWebhook)
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 400 {
			event = log.Warn()
		}
		if status >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}
