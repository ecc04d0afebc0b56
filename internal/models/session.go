package models

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusActive    SessionStatus = "active"
	StatusEnded     SessionStatus = "ended"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusEnded:
		return true
	}
	return false
}

// TransitionSources lists the statuses a session may leave to reach target.
// scheduled -> ended is the abort path for a session that never started.
func TransitionSources(target SessionStatus) []SessionStatus {
	switch target {
	case StatusActive:
		return []SessionStatus{StatusScheduled}
	case StatusEnded:
		return []SessionStatus{StatusScheduled, StatusActive}
	}
	return nil
}

// CanTransition reports whether from -> to is a forward move of the state machine.
func CanTransition(from, to SessionStatus) bool {
	for _, s := range TransitionSources(to) {
		if s == from {
			return true
		}
	}
	return false
}

// Session is the durable record of a live session.
type Session struct {
	// ID is the session identifier (UUID).
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// Name is the human readable title.
	Name string `gorm:"type:text;not null" json:"name"`
	// HostID is the identity that created and owns the session.
	HostID string `gorm:"type:text;not null;index" json:"host_id"`
	// ScheduledAt is the planned start time.
	ScheduledAt time.Time `json:"scheduled_at"`
	// DurationMinutes is the planned length.
	DurationMinutes int `json:"duration_minutes"`
	// JoinCode is the short human-enterable code resolving to the session.
	JoinCode string `gorm:"type:varchar(16);not null;uniqueIndex" json:"join_code"`
	// Status only moves forward (see CanTransition).
	Status SessionStatus `gorm:"type:text;not null;default:'scheduled'" json:"status"`
	// ParticipantIDs is the ordered set of identities that joined and have not left.
	// It is mutated only with array_append/array_remove statements.
	ParticipantIDs pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"participant_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate fills the identifier, join code and initial status when they are unset.
func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.JoinCode == "" {
		s.JoinCode = NewJoinCode()
	}
	if s.Status == "" {
		s.Status = StatusScheduled
	}
	if s.ParticipantIDs == nil {
		s.ParticipantIDs = pq.StringArray{}
	}
	return nil
}

// HasParticipant reports whether identityID is in the participant set.
func (s *Session) HasParticipant(identityID string) bool {
	for _, id := range s.ParticipantIDs {
		if id == identityID {
			return true
		}
	}
	return false
}

const (
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	JoinCodeLength   = 8
)

// NewJoinCode returns a random code from an alphabet without look-alike characters.
func NewJoinCode() string {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf)
}

const roomPrefix = "liveroom-"

// RoomName is the media room that carries a session's audio and video.
func RoomName(sessionID string) string {
	return roomPrefix + sessionID
}

// SessionIDFromRoom reverses RoomName.
func SessionIDFromRoom(room string) (string, bool) {
	if !strings.HasPrefix(room, roomPrefix) || len(room) == len(roomPrefix) {
		return "", false
	}
	return strings.TrimPrefix(room, roomPrefix), true
}
