package chathub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"liveroom/backend/internal/models"
	"liveroom/backend/internal/presence"
)

var errClosed = errors.New("connection closed")

// WebSocketClient is one authenticated websocket connection. Frames queued with
// TrySend are written by a single writer goroutine; requests are read and
// handled one at a time by a single reader goroutine.
type WebSocketClient struct {
	id       string
	identity models.Identity
	conn     *websocket.Conn
	send     chan []byte
	log      zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWebSocketClient wraps an upgraded connection. queueSize bounds the
// number of frames waiting to be written before the client counts as slow.
func NewWebSocketClient(conn *websocket.Conn, identity models.Identity, queueSize int, log zerolog.Logger) *WebSocketClient {
	if queueSize <= 0 {
		queueSize = 256
	}
	id := uuid.NewString()
	return &WebSocketClient{
		id:       id,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, queueSize),
		log: log.With().
			Str("connection_id", id).
			Str("identity_id", identity.ID).
			Logger(),
	}
}

func (c *WebSocketClient) ID() string                { return c.id }
func (c *WebSocketClient) Identity() models.Identity { return c.identity }

// TrySend queues a frame without blocking.
func (c *WebSocketClient) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return presence.ErrBackpressure
	}
}

// Close stops accepting frames. The writer flushes what is queued, sends a
// close frame and tears the socket down, which in turn ends the reader.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run registers the client with the hub and starts both pumps.
func (c *WebSocketClient) Run(h *Hub) {
	h.Register(c)
	go c.writePump()
	go c.readPump(h)
}
