// Package broadcast fans events out to the connections of a session,
// on this instance or on every instance sharing a Redis.
package broadcast

import (
	"context"
	"encoding/json"

	"liveroom/backend/internal/models"
)

// Deliverer queues frames on local connections.
type Deliverer interface {
	DeliverToSession(sessionID string, frame []byte, excludeConn string) int
	DeliverToIdentity(sessionID, identityID string, frame []byte) int
}

// Bus publishes events addressed to a session or to one identity inside it.
type Bus interface {
	ToSession(ctx context.Context, sessionID string, ev models.Event) error
	// ToSessionExcept skips a single connection, usually the one that caused the event.
	ToSessionExcept(ctx context.Context, sessionID, excludeConn string, ev models.Event) error
	ToIdentity(ctx context.Context, sessionID, identityID string, ev models.Event) error
}

// Envelope is the unit carried between instances.
type Envelope struct {
	SessionID string          `json:"session_id"`
	Identity  string          `json:"identity,omitempty"`
	Exclude   string          `json:"exclude,omitempty"`
	Frame     json.RawMessage `json:"frame"`
}

func seal(sessionID, identityID, exclude string, ev models.Event) (Envelope, error) {
	if ev.SessionID == "" {
		ev.SessionID = sessionID
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{SessionID: sessionID, Identity: identityID, Exclude: exclude, Frame: frame}, nil
}

func deliver(d Deliverer, env Envelope) int {
	if env.Identity != "" {
		return d.DeliverToIdentity(env.SessionID, env.Identity, env.Frame)
	}
	return d.DeliverToSession(env.SessionID, env.Frame, env.Exclude)
}

// LocalBus delivers directly to this instance's connections.
type LocalBus struct {
	d Deliverer
}

// NewLocalBus builds a single-instance bus.
func NewLocalBus(d Deliverer) *LocalBus {
	return &LocalBus{d: d}
}

func (b *LocalBus) ToSession(ctx context.Context, sessionID string, ev models.Event) error {
	return b.ToSessionExcept(ctx, sessionID, "", ev)
}

func (b *LocalBus) ToSessionExcept(_ context.Context, sessionID, excludeConn string, ev models.Event) error {
	env, err := seal(sessionID, "", excludeConn, ev)
	if err != nil {
		return err
	}
	deliver(b.d, env)
	return nil
}

func (b *LocalBus) ToIdentity(_ context.Context, sessionID, identityID string, ev models.Event) error {
	env, err := seal(sessionID, identityID, "", ev)
	if err != nil {
		return err
	}
	deliver(b.d, env)
	return nil
}
