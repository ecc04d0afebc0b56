package livekit_test

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveroom/backend/internal/config"
	lk "liveroom/backend/internal/livekit"
)

func TestJobFromInfo(t *testing.T) {
	info := &livekit.EgressInfo{
		EgressId: "EG_1",
		RoomName: "room-1",
		Status:   livekit.EgressStatus_EGRESS_COMPLETE,
		FileResults: []*livekit.FileInfo{{
			Filename: "recordings/s1/math.mp4",
			Location: "s3://bucket/recordings/s1/math.mp4",
			Duration: int64(90 * time.Second),
			Size:     2048,
		}},
	}

	job := lk.JobFromInfo(info)

	assert.Equal(t, "EG_1", job.ID)
	assert.Equal(t, "room-1", job.RoomName)
	assert.False(t, job.Active)
	assert.Equal(t, "EGRESS_COMPLETE", job.Status)
	require.Len(t, job.Files, 1)
	assert.Equal(t, 90*time.Second, job.Files[0].Duration)
	assert.Equal(t, int64(2048), job.Files[0].SizeBytes)
	assert.Contains(t, string(job.Raw), `"egressId":"EG_1"`)
}

func TestJobFromInfo_Active(t *testing.T) {
	assert.True(t, lk.JobFromInfo(&livekit.EgressInfo{Status: livekit.EgressStatus_EGRESS_STARTING}).Active)
	assert.True(t, lk.JobFromInfo(&livekit.EgressInfo{Status: livekit.EgressStatus_EGRESS_ACTIVE}).Active)
	assert.False(t, lk.JobFromInfo(&livekit.EgressInfo{Status: livekit.EgressStatus_EGRESS_FAILED}).Active)
	assert.Equal(t, lk.Job{}, lk.JobFromInfo(nil))
}

func TestTokenGenerator_Generate(t *testing.T) {
	gen := lk.NewTokenGenerator(config.LiveKitConfig{APIKey: "key", APISecret: "a-long-enough-secret-for-hmac", TokenTTL: time.Hour})

	raw, err := gen.Generate("room-1", "alice", "Alice", false)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte("a-long-enough-secret-for-hmac"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "key", claims["iss"])
	video, ok := claims["video"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "room-1", video["room"])
	assert.Equal(t, true, video["roomJoin"])
}

func TestObjectKey(t *testing.T) {
	c := lk.NewEgressClient(
		config.LiveKitConfig{URL: "http://localhost:7880", APIKey: "k", APISecret: "s"},
		config.RecordingStorageConfig{Prefix: "recordings"},
	)
	assert.Equal(t, "recordings/s1/math.mp4", c.ObjectKey("s1", "math.mp4"))
}
