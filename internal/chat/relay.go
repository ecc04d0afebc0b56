// Package chat persists and relays session chat in a single total order per session.
package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/broadcast"
	"liveroom/backend/internal/lock"
	"liveroom/backend/internal/metrics"
	"liveroom/backend/internal/models"
)

const (
	// DefaultHistoryLimit is used when a caller asks for no particular amount.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a single history request.
	MaxHistoryLimit = 200
	// MaxBodyRunes bounds a message body; longer bodies are truncated.
	MaxBodyRunes = 2000
)

// Store is the chat persistence used by the relay.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	PurgeMessages(ctx context.Context, sessionID string) (int64, error)
}

// Relay persists then broadcasts chat messages.
type Relay struct {
	store        Store
	bus          broadcast.Bus
	locker       lock.Locker
	log          zerolog.Logger
	defaultLimit int
	now          func() time.Time
}

// NewRelay builds a relay. defaultLimit <= 0 selects DefaultHistoryLimit.
func NewRelay(store Store, bus broadcast.Bus, locker lock.Locker, defaultLimit int, log zerolog.Logger) *Relay {
	if defaultLimit <= 0 || defaultLimit > MaxHistoryLimit {
		defaultLimit = DefaultHistoryLimit
	}
	return &Relay{
		store:        store,
		bus:          bus,
		locker:       locker,
		log:          log.With().Str("component", "chat").Logger(),
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// LockKey serializes persistence and broadcast of one session's chat.
func LockKey(sessionID string) string {
	return "chat:" + sessionID
}

// PostMessage publishes a participant's message. The sender receives its own
// message back through the broadcast, which confirms its position in the order.
func (r *Relay) PostMessage(ctx context.Context, sessionID string, sender models.Identity, displayName, body string) (*models.ChatMessage, error) {
	body = normalize(body)
	if body == "" {
		return nil, apperr.ErrEmptyMessage
	}

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.External(err)
	}
	if session.Status == models.StatusEnded {
		return nil, apperr.ErrSessionEnded
	}

	if displayName == "" {
		displayName = sender.DisplayName
	}
	msg := &models.ChatMessage{
		SessionID:  session.ID,
		SenderID:   sender.ID,
		SenderName: displayName,
		Body:       body,
		Kind:       models.KindText,
	}
	if err := r.publish(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// PostSystemMessage publishes an announcement from the reserved system sender.
func (r *Relay) PostSystemMessage(ctx context.Context, sessionID, body string) (*models.ChatMessage, error) {
	body = normalize(body)
	if body == "" {
		return nil, apperr.ErrEmptyMessage
	}
	msg := &models.ChatMessage{
		SessionID:  sessionID,
		SenderID:   models.SystemSenderID,
		SenderName: models.SystemSenderID,
		Body:       body,
		Kind:       models.KindSystem,
	}
	if err := r.publish(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// publish assigns the timestamp, persists and broadcasts under the session lock.
// Timestamps strictly increase per session so broadcast order equals stored order.
func (r *Relay) publish(ctx context.Context, msg *models.ChatMessage) error {
	unlock, err := r.locker.Lock(ctx, LockKey(msg.SessionID))
	if err != nil {
		return apperr.External(err)
	}
	defer unlock()

	ts := r.now().UTC().Truncate(time.Microsecond)
	latest, err := r.store.RecentMessages(ctx, msg.SessionID, 1)
	if err != nil {
		return apperr.External(err)
	}
	if len(latest) == 1 && !ts.After(latest[0].CreatedAt) {
		// Postgres keeps microseconds; step past the previous message
		ts = latest[0].CreatedAt.UTC().Add(time.Microsecond)
	}
	msg.CreatedAt = ts

	if err := r.store.SaveMessage(ctx, msg); err != nil {
		return apperr.External(err)
	}
	metrics.ChatMessages.WithLabelValues(string(msg.Kind)).Inc()

	ev := models.Event{Type: models.EvChatMessage, SessionID: msg.SessionID, Data: msg}
	if err := r.bus.ToSession(ctx, msg.SessionID, ev); err != nil {
		// persisted; clients catch up through history
		r.log.Error().Err(err).Str("session_id", msg.SessionID).Uint("message_id", msg.ID).Msg("broadcast failed")
	}
	return nil
}

// History returns up to limit of the newest messages in ascending order.
func (r *Relay) History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if _, err := r.store.GetSession(ctx, sessionID); err != nil {
		return nil, apperr.External(err)
	}
	msgs, err := r.store.RecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, apperr.External(err)
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

// Purge irreversibly deletes a session's chat. Only the host may purge.
func (r *Relay) Purge(ctx context.Context, caller models.Identity, sessionID string) (int64, error) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, apperr.External(err)
	}
	if !caller.IsHostOf(session) {
		return 0, apperr.ErrNotAuthorized
	}
	return r.purge(ctx, session.ID)
}

// PurgeAsOperator deletes a session's chat without a host check.
func (r *Relay) PurgeAsOperator(ctx context.Context, sessionID string) (int64, error) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, apperr.External(err)
	}
	return r.purge(ctx, session.ID)
}

func (r *Relay) purge(ctx context.Context, sessionID string) (int64, error) {
	unlock, err := r.locker.Lock(ctx, LockKey(sessionID))
	if err != nil {
		return 0, apperr.External(err)
	}
	defer unlock()

	n, err := r.store.PurgeMessages(ctx, sessionID)
	if err != nil {
		return 0, apperr.External(err)
	}
	r.log.Info().Str("session_id", sessionID).Int64("deleted", n).Msg("chat purged")

	ev := models.Event{Type: models.EvChatPurged, SessionID: sessionID, Data: map[string]int64{"deleted": n}}
	if err := r.bus.ToSession(ctx, sessionID, ev); err != nil {
		r.log.Error().Err(err).Str("session_id", sessionID).Msg("broadcast failed")
	}
	return n, nil
}

func normalize(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= MaxBodyRunes {
		return body
	}
	runes := []rune(body)
	return strings.TrimSpace(string(runes[:MaxBodyRunes]))
}
