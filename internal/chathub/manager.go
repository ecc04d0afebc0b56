// Package chathub routes client requests arriving on persistent connections to
// the realtime components and answers on the same connection.
package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/broadcast"
	"liveroom/backend/internal/config"
	"liveroom/backend/internal/localization"
	"liveroom/backend/internal/metrics"
	"liveroom/backend/internal/models"
	"liveroom/backend/internal/presence"
)

// Presence is the connection registry.
type Presence interface {
	Join(ctx context.Context, conn presence.Conn, sessionID, displayName string) (*models.Session, error)
	Leave(ctx context.Context, connID string) (*presence.LeaveResult, error)
	Lookup(connID string) (presence.Entry, bool)
	Present(sessionID string) []models.PresentParticipant
}

// Sessions resolves join codes.
type Sessions interface {
	GetSessionByCode(ctx context.Context, joinCode string) (*models.Session, error)
}

// Chat is the chat relay.
type Chat interface {
	PostMessage(ctx context.Context, sessionID string, sender models.Identity, displayName, body string) (*models.ChatMessage, error)
	PostSystemMessage(ctx context.Context, sessionID, body string) (*models.ChatMessage, error)
	History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
}

// Signaling forwards negotiation payloads.
type Signaling interface {
	Forward(ctx context.Context, fromConn, targetIdentity, kind string, payload json.RawMessage)
}

// Lifecycle changes session status.
type Lifecycle interface {
	ActivateOnHostJoin(ctx context.Context, identity models.Identity, session *models.Session) (*models.Session, error)
	UpdateStatus(ctx context.Context, caller models.Identity, sessionID string, target models.SessionStatus) (*models.Session, error)
}

// Recordings drives recording jobs.
type Recordings interface {
	Start(ctx context.Context, caller models.Identity, sessionID, desiredFileName string) (models.RecordingJob, error)
	Stop(ctx context.Context, caller models.Identity, jobID string) (models.RecordingJob, error)
	Status(ctx context.Context, jobID string) (models.RecordingStatus, error)
	Active(sessionID string) []models.RecordingJob
}

// MediaTokens issues access tokens for a session's media room.
type MediaTokens interface {
	Generate(room, identity, name string, host bool) (string, error)
}

// Deps are the collaborators of a Hub. Tokens may be nil when no media
// service is configured.
type Deps struct {
	Presence   Presence
	Sessions   Sessions
	Chat       Chat
	Signaling  Signaling
	Lifecycle  Lifecycle
	Recordings Recordings
	Tokens     MediaTokens
	Bus        broadcast.Bus
	Localizer  *localization.Localizer
}

// Options tune a Hub.
type Options struct {
	ICEServers    []webrtc.ICEServer
	MediaURL      string
	HistoryLimit  int
	CodeCacheSize int
	// RequestTimeout bounds the handling of one inbound frame.
	RequestTimeout time.Duration
}

// Hub is the per-process router. It keeps no connection state of its own;
// presence owns that.
type Hub struct {
	Deps
	opts  Options
	codes *lru.Cache
	log   zerolog.Logger
}

// NewHub builds a hub.
func NewHub(deps Deps, opts Options, log zerolog.Logger) (*Hub, error) {
	if opts.CodeCacheSize <= 0 {
		opts.CodeCacheSize = 1024
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	codes, err := lru.New(opts.CodeCacheSize)
	if err != nil {
		return nil, err
	}
	return &Hub{
		Deps:  deps,
		opts:  opts,
		codes: codes,
		log:   log.With().Str("component", "hub").Logger(),
	}, nil
}

// ICEServers converts the configured ICE servers for the welcome event.
func ICEServers(cfg config.ICEConfig) []webrtc.ICEServer {
	if len(cfg.URLs) == 0 {
		return nil
	}
	server := webrtc.ICEServer{URLs: cfg.URLs}
	if cfg.Username != "" {
		server.Username = cfg.Username
		server.Credential = cfg.Credential
	}
	return []webrtc.ICEServer{server}
}

// WelcomeData is pushed once right after a connection is accepted.
type WelcomeData struct {
	ConnectionID string             `json:"connection_id"`
	Identity     models.Identity    `json:"identity"`
	ICEServers   []webrtc.ICEServer `json:"ice_servers,omitempty"`
}

// JoinedData acknowledges a join.
type JoinedData struct {
	Session    *models.Session             `json:"session"`
	Present    []models.PresentParticipant `json:"present"`
	History    []models.ChatMessage        `json:"history"`
	Recordings []models.RecordingJob       `json:"recordings,omitempty"`
	MediaURL   string                      `json:"media_url,omitempty"`
	MediaToken string                      `json:"media_token,omitempty"`
}

// Register greets a freshly accepted connection.
func (h *Hub) Register(c presence.Conn) {
	metrics.Connections.Inc()
	h.log.Info().Str("connection_id", c.ID()).Str("identity_id", c.Identity().ID).Msg("connection accepted")
	h.send(c, models.Event{
		Type: models.EvWelcome,
		Data: WelcomeData{
			ConnectionID: c.ID(),
			Identity:     c.Identity(),
			ICEServers:   h.opts.ICEServers,
		},
	})
}

// Disconnect runs leave cleanup for a connection that went away.
func (h *Hub) Disconnect(c presence.Conn) {
	metrics.Connections.Dec()
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.RequestTimeout)
	defer cancel()
	h.leave(ctx, c)
	h.log.Info().Str("connection_id", c.ID()).Msg("connection closed")
}

// leave removes the connection from its session and tells the others.
// Failures are logged only; cleanup always completes.
func (h *Hub) leave(ctx context.Context, c presence.Conn) *presence.LeaveResult {
	res, err := h.Presence.Leave(ctx, c.ID())
	if err != nil {
		h.log.Error().Err(err).Str("connection_id", c.ID()).Msg("leave cleanup failed")
	}
	if res == nil {
		return nil
	}

	sessionID := res.Entry.SessionID
	ev := models.Event{Type: models.EvParticipantLeft, SessionID: sessionID, Data: res.Entry.Participant()}
	if err := h.Bus.ToSession(ctx, sessionID, ev); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("broadcast participant_left failed")
	}
	if res.IdentityGone {
		h.announce(ctx, sessionID, h.Localizer.Format(localization.KeyParticipantLeft, res.Entry.DisplayName))
	}
	return res
}

func (h *Hub) announce(ctx context.Context, sessionID, body string) {
	if _, err := h.Chat.PostSystemMessage(ctx, sessionID, body); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("system message failed")
	}
}

// resolveCode maps a join code to a session id. Codes never change once
// issued, so hits are served from the cache.
func (h *Hub) resolveCode(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if id, ok := h.codes.Get(code); ok {
		return id.(string), nil
	}
	session, err := h.Sessions.GetSessionByCode(ctx, code)
	if err != nil {
		return "", err
	}
	h.codes.Add(code, session.ID)
	return session.ID, nil
}

func (h *Hub) reply(c presence.Conn, in models.Inbound, typ models.EventType, sessionID string, data any) {
	h.send(c, models.Event{Type: typ, RequestID: in.RequestID, SessionID: sessionID, Data: data})
}

// fail reports err to the initiating connection only.
func (h *Hub) fail(c presence.Conn, requestID string, err error) {
	code := apperr.CodeOf(err)
	msg := apperr.MessageOf(err)
	if code == apperr.CodeInternal {
		h.log.Error().Err(err).Str("connection_id", c.ID()).Msg("request failed")
		msg = "internal error"
	}
	h.send(c, models.Event{
		Type:      models.EvError,
		RequestID: requestID,
		Error:     &models.ErrorBody{Code: string(code), Message: msg},
	})
}

func (h *Hub) send(c presence.Conn, ev models.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event failed")
		return
	}
	if err := c.TrySend(frame); err != nil {
		if errors.Is(err, presence.ErrBackpressure) {
			metrics.SlowConsumers.Inc()
			h.log.Warn().Str("connection_id", c.ID()).Msg("send queue full, closing connection")
			c.Close()
		}
	}
}
