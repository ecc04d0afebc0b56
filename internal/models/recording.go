package models

import (
	"encoding/json"
	"time"
)

// RecordingRecord describes one uploaded composite recording file.
// Records are append-only; URL is derived on read and never stored.
type RecordingRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SessionID string `gorm:"type:uuid;not null;index" json:"session_id"`
	// JobID is the egress job that produced the file.
	JobID    string `gorm:"type:text;not null;uniqueIndex:idx_recording_upload,priority:1" json:"job_id"`
	FileName string `gorm:"type:text;not null;uniqueIndex:idx_recording_upload,priority:2" json:"file_name"`
	// ObjectKey locates the file in object storage.
	ObjectKey  string    `gorm:"type:text;not null" json:"object_key"`
	DurationMs int64     `json:"duration_ms"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`

	URL string `gorm:"-" json:"url,omitempty"`
}

// RecordingJob is the ephemeral handle of a running egress job.
type RecordingJob struct {
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id"`
	FileName  string    `json:"file_name"`
	StartedAt time.Time `json:"started_at"`
}

// RecordingStatus is an external job state returned verbatim.
type RecordingStatus struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	// Raw is the media service's own encoding of the job.
	Raw json.RawMessage `json:"raw,omitempty"`
}
