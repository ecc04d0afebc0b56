package livekit

import (
	"time"

	"github.com/livekit/protocol/auth"

	"liveroom/backend/internal/config"
)

// TokenGenerator generates LiveKit access tokens.
type TokenGenerator struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

// NewTokenGenerator creates a new token generator.
func NewTokenGenerator(cfg config.LiveKitConfig) *TokenGenerator {
	return &TokenGenerator{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		ttl:       cfg.TokenTTL,
	}
}

// Generate creates a media access token for identity in room.
// Hosts may additionally administer the room.
func (g *TokenGenerator) Generate(room, identity, name string, host bool) (string, error) {
	at := auth.NewAccessToken(g.apiKey, g.apiSecret)

	canPublish := true
	canSubscribe := true
	canPublishData := true

	grant := &auth.VideoGrant{
		RoomJoin:       true,
		RoomAdmin:      host,
		Room:           room,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(g.ttl)

	return at.ToJWT()
}
