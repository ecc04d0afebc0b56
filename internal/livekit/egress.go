package livekit

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"google.golang.org/protobuf/encoding/protojson"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/config"
	"liveroom/backend/internal/metrics"
)

// File is one uploaded output of a finished job.
type File struct {
	Name      string
	Location  string
	Duration  time.Duration
	SizeBytes int64
}

// Job is the media service's view of a recording job.
type Job struct {
	ID       string
	RoomName string
	Status   string
	Active   bool
	Error    string
	Files    []File
	// Raw is the protojson encoding of the job as reported by the media service.
	Raw json.RawMessage
}

// EgressClient drives room-composite recordings.
type EgressClient struct {
	client  *lksdk.EgressClient
	layout  string
	storage config.RecordingStorageConfig
}

// NewEgressClient creates a recording client writing MP4 files to the configured bucket.
func NewEgressClient(lk config.LiveKitConfig, storage config.RecordingStorageConfig) *EgressClient {
	return &EgressClient{
		client:  lksdk.NewEgressClient(lk.URL, lk.APIKey, lk.APISecret),
		layout:  lk.RecordingLayout,
		storage: storage,
	}
}

// ObjectKey is where a recording of sessionID named fileName is uploaded.
func (c *EgressClient) ObjectKey(sessionID, fileName string) string {
	return path.Join(c.storage.Prefix, sessionID, fileName)
}

// StartComposite starts recording every participant of roomName into filePath.
func (c *EgressClient) StartComposite(ctx context.Context, roomName, filePath string) (Job, error) {
	defer observe("start")()

	req := &livekit.RoomCompositeEgressRequest{
		RoomName: roomName,
		Layout:   c.layout,
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_MP4,
			Filepath: filePath,
			Output: &livekit.EncodedFileOutput_S3{S3: &livekit.S3Upload{
				AccessKey:      c.storage.AccessKeyID,
				Secret:         c.storage.SecretKey,
				Region:         c.storage.Region,
				Endpoint:       c.storage.Endpoint,
				Bucket:         c.storage.Bucket,
				ForcePathStyle: c.storage.UsePathStyle,
			}},
		}},
	}

	info, err := c.client.StartRoomCompositeEgress(ctx, req)
	if err != nil {
		return Job{}, classify(err, nil)
	}
	return JobFromInfo(info), nil
}

// Stop ends a job. Unknown ids yield apperr.ErrJobNotFound.
func (c *EgressClient) Stop(ctx context.Context, jobID string) (Job, error) {
	defer observe("stop")()

	info, err := c.client.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: jobID})
	if err != nil {
		return Job{}, classify(err, apperr.ErrJobNotFound)
	}
	return JobFromInfo(info), nil
}

// Get returns the current state of a job.
func (c *EgressClient) Get(ctx context.Context, jobID string) (Job, error) {
	defer observe("get")()

	resp, err := c.client.ListEgress(ctx, &livekit.ListEgressRequest{EgressId: jobID})
	if err != nil {
		return Job{}, classify(err, apperr.ErrJobNotFound)
	}
	for _, info := range resp.GetItems() {
		if info.GetEgressId() == jobID {
			return JobFromInfo(info), nil
		}
	}
	return Job{}, apperr.ErrJobNotFound
}

// ActiveForRoom lists the jobs still running for roomName.
func (c *EgressClient) ActiveForRoom(ctx context.Context, roomName string) ([]Job, error) {
	defer observe("list")()

	resp, err := c.client.ListEgress(ctx, &livekit.ListEgressRequest{RoomName: roomName, Active: true})
	if err != nil {
		return nil, classify(err, nil)
	}
	jobs := make([]Job, 0, len(resp.GetItems()))
	for _, info := range resp.GetItems() {
		if job := JobFromInfo(info); job.Active {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// JobFromInfo converts the wire representation.
func JobFromInfo(info *livekit.EgressInfo) Job {
	if info == nil {
		return Job{}
	}
	job := Job{
		ID:       info.GetEgressId(),
		RoomName: info.GetRoomName(),
		Status:   info.GetStatus().String(),
		Error:    info.GetError(),
	}
	switch info.GetStatus() {
	case livekit.EgressStatus_EGRESS_STARTING, livekit.EgressStatus_EGRESS_ACTIVE:
		job.Active = true
	}
	for _, f := range info.GetFileResults() {
		job.Files = append(job.Files, File{
			Name:      f.GetFilename(),
			Location:  f.GetLocation(),
			Duration:  time.Duration(f.GetDuration()),
			SizeBytes: f.GetSize(),
		})
	}
	if raw, err := protojson.Marshal(info); err == nil {
		job.Raw = raw
	}
	return job
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.MediaCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
