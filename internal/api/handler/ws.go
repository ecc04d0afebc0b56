package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"liveroom/backend/internal/chathub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// clients authenticate with a bearer token, not cookies
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated request and hands the connection to the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity := identityFrom(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the failure response
		h.log.Warn().Err(err).Str("identity_id", identity.ID).Msg("websocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(conn, identity, h.QueueSize, h.log)
	client.Run(h.Hub)
}
