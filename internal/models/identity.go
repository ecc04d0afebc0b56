package models

// Role is the participant's role carried in the connection token.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// SystemSenderID is the reserved sender of lifecycle and presence announcements.
const SystemSenderID = "system"

// Identity is the authenticated participant behind a connection.
// It is owned by the external user store and never mutated here.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// IsHostOf reports whether the identity owns the session.
func (i Identity) IsHostOf(s *Session) bool {
	return s != nil && i.ID != "" && i.ID == s.HostID
}
