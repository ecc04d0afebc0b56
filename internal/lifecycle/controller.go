// Package lifecycle enforces the forward-only session state machine and its side effects.
package lifecycle

import (
	"context"

	"github.com/rs/zerolog"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/broadcast"
	"liveroom/backend/internal/localization"
	"liveroom/backend/internal/metrics"
	"liveroom/backend/internal/models"
)

// Store reads sessions and writes status with a compare-and-set.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	TransitionStatus(ctx context.Context, sessionID string, from []models.SessionStatus, to models.SessionStatus) (bool, error)
}

// Rooms manages the media room backing a session.
type Rooms interface {
	EnsureRoom(ctx context.Context, name string) error
	DeleteRoom(ctx context.Context, name string) error
}

// Announcer writes system messages into the session chat.
type Announcer interface {
	PostSystemMessage(ctx context.Context, sessionID, body string) (*models.ChatMessage, error)
}

// RecordingStopper ends every running recording of a session.
type RecordingStopper interface {
	StopAllForSession(ctx context.Context, sessionID string) error
}

// Notifier reaches operators out of band.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Controller applies status transitions.
type Controller struct {
	store      Store
	bus        broadcast.Bus
	chat       Announcer
	rooms      Rooms
	recordings RecordingStopper
	notifier   Notifier
	loc        *localization.Localizer
	log        zerolog.Logger
}

// Options carries the optional collaborators. Nil fields disable their side effect.
type Options struct {
	Rooms      Rooms
	Recordings RecordingStopper
	Notifier   Notifier
}

// NewController builds a lifecycle controller.
func NewController(store Store, bus broadcast.Bus, chat Announcer, loc *localization.Localizer, opts Options, log zerolog.Logger) *Controller {
	return &Controller{
		store:      store,
		bus:        bus,
		chat:       chat,
		rooms:      opts.Rooms,
		recordings: opts.Recordings,
		notifier:   opts.Notifier,
		loc:        loc,
		log:        log.With().Str("component", "lifecycle").Logger(),
	}
}

// Transition moves the session to target. Requesting the current status is a
// successful no-op; leaving ended or moving backwards is ErrInvalidTransition.
// changed reports whether this call performed the move.
func (c *Controller) Transition(ctx context.Context, sessionID string, target models.SessionStatus) (session *models.Session, changed bool, err error) {
	if !target.Valid() {
		return nil, false, apperr.New(apperr.CodeBadRequest, "unknown status "+string(target))
	}

	session, err = c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, apperr.External(err)
	}
	if session.Status == target {
		return session, false, nil
	}
	if !models.CanTransition(session.Status, target) {
		return session, false, apperr.ErrInvalidTransition
	}

	from := session.Status
	ok, err := c.store.TransitionStatus(ctx, session.ID, models.TransitionSources(target), target)
	if err != nil {
		return nil, false, apperr.External(err)
	}
	if !ok {
		// lost a race; whoever won decides the outcome
		current, err := c.store.GetSession(ctx, session.ID)
		if err != nil {
			return nil, false, apperr.External(err)
		}
		if current.Status == target {
			return current, false, nil
		}
		return current, false, apperr.ErrInvalidTransition
	}

	session.Status = target
	c.afterTransition(ctx, session, from)
	return session, true, nil
}

// ActivateOnHostJoin starts a scheduled session when its host joins.
func (c *Controller) ActivateOnHostJoin(ctx context.Context, identity models.Identity, session *models.Session) (*models.Session, error) {
	if session == nil || !identity.IsHostOf(session) || session.Status != models.StatusScheduled {
		return session, nil
	}
	updated, _, err := c.Transition(ctx, session.ID, models.StatusActive)
	if err != nil {
		return session, err
	}
	return updated, nil
}

// UpdateStatus is the host's explicit status change. Ending a session stops its
// recordings first; if that fails the session stays as it was so the host can retry.
func (c *Controller) UpdateStatus(ctx context.Context, caller models.Identity, sessionID string, target models.SessionStatus) (*models.Session, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.External(err)
	}
	if !caller.IsHostOf(session) {
		return nil, apperr.ErrNotAuthorized
	}
	return c.apply(ctx, session, target)
}

// ForceStatus applies a transition on behalf of an operator.
func (c *Controller) ForceStatus(ctx context.Context, sessionID string, target models.SessionStatus) (*models.Session, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.External(err)
	}
	return c.apply(ctx, session, target)
}

func (c *Controller) apply(ctx context.Context, session *models.Session, target models.SessionStatus) (*models.Session, error) {
	if target == models.StatusEnded && session.Status != models.StatusEnded && c.recordings != nil {
		if err := c.recordings.StopAllForSession(ctx, session.ID); err != nil {
			return nil, err
		}
	}
	updated, _, err := c.Transition(ctx, session.ID, target)
	return updated, err
}

func (c *Controller) afterTransition(ctx context.Context, session *models.Session, from models.SessionStatus) {
	to := session.Status
	metrics.RecordStateTransition(string(from), string(to))
	logger := c.log.With().Str("session_id", session.ID).Str("from", string(from)).Str("to", string(to)).Logger()
	logger.Info().Msg("session status changed")

	ev := models.Event{
		Type:      models.EvStatusChanged,
		SessionID: session.ID,
		Data:      models.StatusChange{From: from, To: to},
	}
	if err := c.bus.ToSession(ctx, session.ID, ev); err != nil {
		logger.Error().Err(err).Msg("status broadcast failed")
	}

	var key string
	switch to {
	case models.StatusActive:
		key = localization.KeySessionStarted
		if c.rooms != nil {
			if err := c.rooms.EnsureRoom(ctx, models.RoomName(session.ID)); err != nil {
				logger.Error().Err(err).Msg("create media room failed")
			}
		}
	case models.StatusEnded:
		key = localization.KeySessionEnded
		if c.rooms != nil {
			if err := c.rooms.DeleteRoom(ctx, models.RoomName(session.ID)); err != nil {
				logger.Error().Err(err).Msg("delete media room failed")
			}
		}
	}
	if key != "" && c.chat != nil {
		if _, err := c.chat.PostSystemMessage(ctx, session.ID, c.loc.Format(key)); err != nil {
			logger.Error().Err(err).Msg("status announcement failed")
		}
	}

	if c.notifier != nil {
		c.notifier.Notify(ctx, c.loc.Format(localization.KeyOpsSessionStatus, session.Name, session.ID, from, to))
	}
}
