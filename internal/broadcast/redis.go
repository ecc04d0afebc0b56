package broadcast

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"liveroom/backend/internal/models"
)

const channelPrefix = "liveroom:session:"

// RedisBus publishes every envelope to Redis; each instance's listener
// delivers it to that instance's connections, including the publisher's own.
type RedisBus struct {
	client redis.UniversalClient
	d      Deliverer
	log    zerolog.Logger
}

// NewRedisBus builds a cross-instance bus. Run must be started for local delivery.
func NewRedisBus(client redis.UniversalClient, d Deliverer, log zerolog.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		d:      d,
		log:    log.With().Str("component", "broadcast").Logger(),
	}
}

func (b *RedisBus) ToSession(ctx context.Context, sessionID string, ev models.Event) error {
	return b.ToSessionExcept(ctx, sessionID, "", ev)
}

func (b *RedisBus) ToSessionExcept(ctx context.Context, sessionID, excludeConn string, ev models.Event) error {
	env, err := seal(sessionID, "", excludeConn, ev)
	if err != nil {
		return err
	}
	return b.publish(ctx, env)
}

func (b *RedisBus) ToIdentity(ctx context.Context, sessionID, identityID string, ev models.Event) error {
	env, err := seal(sessionID, identityID, "", ev)
	if err != nil {
		return err
	}
	return b.publish(ctx, env)
}

func (b *RedisBus) publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+env.SessionID, payload).Err()
}

// Run listens on every session channel until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	b.log.Info().Msg("listening for session events")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(msg.Channel, msg.Payload)
		}
	}
}

func (b *RedisBus) dispatch(channel, payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Error().Err(err).Str("channel", channel).Msg("Error unmarshalling Redis message")
		return
	}
	if env.SessionID == "" {
		env.SessionID = strings.TrimPrefix(channel, channelPrefix)
	}
	deliver(b.d, env)
}
