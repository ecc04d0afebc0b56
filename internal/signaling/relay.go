// Package signaling forwards peer negotiation payloads between co-present connections.
package signaling

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"liveroom/backend/internal/broadcast"
	"liveroom/backend/internal/metrics"
	"liveroom/backend/internal/models"
	"liveroom/backend/internal/presence"
)

// Presence resolves the sender's current session.
type Presence interface {
	Lookup(connID string) (presence.Entry, bool)
}

// Relay forwards opaque payloads. Nothing is persisted or inspected.
type Relay struct {
	presence Presence
	bus      broadcast.Bus
	log      zerolog.Logger
}

// NewRelay builds a signaling relay.
func NewRelay(p Presence, bus broadcast.Bus, log zerolog.Logger) *Relay {
	return &Relay{
		presence: p,
		bus:      bus,
		log:      log.With().Str("component", "signaling").Logger(),
	}
}

// Forward delivers payload unchanged to every connection of targetIdentity in
// the sender's session. A sender outside any session, or a target nobody
// matches, is dropped silently; the protocol above retries on timeout.
func (r *Relay) Forward(ctx context.Context, fromConn, targetIdentity, kind string, payload json.RawMessage) {
	entry, ok := r.presence.Lookup(fromConn)
	if !ok || targetIdentity == "" {
		metrics.SignalsForwarded.WithLabelValues("dropped").Inc()
		r.log.Debug().Str("connection_id", fromConn).Msg("signal from connection outside a session dropped")
		return
	}

	ev := models.Event{
		Type:      models.EvSignal,
		SessionID: entry.SessionID,
		Data: models.SignalData{
			From:           entry.Identity.ID,
			FromConnection: fromConn,
			Kind:           kind,
			Payload:        payload,
		},
	}
	if err := r.bus.ToIdentity(ctx, entry.SessionID, targetIdentity, ev); err != nil {
		metrics.SignalsForwarded.WithLabelValues("error").Inc()
		r.log.Warn().Err(err).Str("session_id", entry.SessionID).Str("target", targetIdentity).Msg("signal forward failed")
		return
	}
	metrics.SignalsForwarded.WithLabelValues("forwarded").Inc()
}
