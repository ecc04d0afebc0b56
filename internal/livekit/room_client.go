package livekit

import (
	"context"
	"errors"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"liveroom/backend/internal/config"
)

var errRoomMissing = errors.New("room not found")

// RoomClient provides access to LiveKit room management APIs.
type RoomClient struct {
	client       *lksdk.RoomServiceClient
	emptyTimeout uint32
}

// NewRoomClient creates a new LiveKit room client.
func NewRoomClient(cfg config.LiveKitConfig) *RoomClient {
	return &RoomClient{
		client:       lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		emptyTimeout: uint32(cfg.RoomEmptyTimeout.Seconds()),
	}
}

// EnsureRoom creates the media room. Creating an existing room returns it unchanged.
func (c *RoomClient) EnsureRoom(ctx context.Context, name string) error {
	defer observe("create_room")()

	_, err := c.client.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         name,
		EmptyTimeout: c.emptyTimeout,
	})
	if errors.Is(classify(err, nil), ErrAlreadyExists) {
		return nil
	}
	return classify(err, nil)
}

// DeleteRoom disconnects everyone and removes the room. A missing room is not an error.
func (c *RoomClient) DeleteRoom(ctx context.Context, name string) error {
	defer observe("delete_room")()

	_, err := c.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	if errors.Is(classify(err, errRoomMissing), errRoomMissing) {
		return nil
	}
	return classify(err, nil)
}
