package models

import "time"

// MessageKind distinguishes user chat from service announcements.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindSystem MessageKind = "system"
)

// ChatMessage represents a persisted chat message. Messages are never
// mutated after creation; the only deletion path is a bulk purge.
type ChatMessage struct {
	// ID is the insertion sequence, used to break timestamp ties.
	ID uint `gorm:"primaryKey" json:"id"`
	// SessionID is the session the message belongs to.
	SessionID string `gorm:"type:uuid;not null;index:idx_session_time,priority:1" json:"session_id"`
	// SenderID is the identity of the author, or SystemSenderID.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// SenderName is the display name at the time of sending.
	SenderName string `gorm:"type:text" json:"sender_name"`
	// Body is the trimmed message text.
	Body string `gorm:"type:text;not null" json:"body"`
	// Kind is text for users and system for announcements.
	Kind MessageKind `gorm:"type:text;not null" json:"kind"`
	// CreatedAt is assigned by the relay and strictly increases within a session.
	CreatedAt time.Time `gorm:"not null;index:idx_session_time,priority:2" json:"created_at"`
}
