// Package handler exposes the websocket endpoint and the REST surface.
package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"liveroom/backend/internal/chathub"
	lk "liveroom/backend/internal/livekit"
	"liveroom/backend/internal/models"
)

// Authenticator validates the bearer token of a request.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (models.Identity, error)
}

// SessionStore is the session persistence used by the REST endpoints.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	GetSessionByCode(ctx context.Context, joinCode string) (*models.Session, error)
}

// StatusUpdater applies host status changes.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, caller models.Identity, sessionID string, target models.SessionStatus) (*models.Session, error)
}

// ChatHistory reads and purges session chat.
type ChatHistory interface {
	History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	Purge(ctx context.Context, caller models.Identity, sessionID string) (int64, error)
}

// RecordingCatalog lists recordings and records finished jobs.
type RecordingCatalog interface {
	List(ctx context.Context, sessionID string) ([]models.RecordingRecord, error)
	Complete(ctx context.Context, finished lk.Job) ([]models.RecordingRecord, error)
}

// WebhookReceiver verifies media service callbacks.
type WebhookReceiver interface {
	FinishedJob(r *http.Request) (lk.Job, bool, error)
}

// Deps are the collaborators of a Handler. Webhooks may be nil when no media
// service is configured.
type Deps struct {
	Hub        *chathub.Hub
	Auth       Authenticator
	Sessions   SessionStore
	Lifecycle  StatusUpdater
	Chat       ChatHistory
	Recordings RecordingCatalog
	Webhooks   WebhookReceiver
	// QueueSize bounds each connection's outgoing frame queue.
	QueueSize int
}

// Handler holds everything the HTTP routes need.
type Handler struct {
	Deps
	log zerolog.Logger
}

func NewHandler(deps Deps, log zerolog.Logger) *Handler {
	return &Handler{Deps: deps, log: log.With().Str("component", "http").Logger()}
}
