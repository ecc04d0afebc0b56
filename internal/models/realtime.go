package models

import "encoding/json"

// InboundType enumerates every request a client may send over its connection.
type InboundType string

const (
	InJoin            InboundType = "join"
	InLeave           InboundType = "leave"
	InChat            InboundType = "chat"
	InHistory         InboundType = "history"
	InSignal          InboundType = "signal"
	InUpdateStatus    InboundType = "update_status"
	InStartRecording  InboundType = "start_recording"
	InStopRecording   InboundType = "stop_recording"
	InRecordingStatus InboundType = "recording_status"
	InPing            InboundType = "ping"
)

// Inbound is a client request frame. Only the fields relevant to Type are read.
type Inbound struct {
	Type      InboundType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`

	SessionID   string `json:"session_id,omitempty"`
	JoinCode    string `json:"join_code,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	Body  string `json:"body,omitempty"`
	Limit int    `json:"limit,omitempty"`

	// Target and Payload carry negotiation traffic; Payload is never decoded.
	Target     string          `json:"target,omitempty"`
	SignalKind string          `json:"signal_kind,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	Status   SessionStatus `json:"status,omitempty"`
	FileName string        `json:"file_name,omitempty"`
	JobID    string        `json:"job_id,omitempty"`
}

// EventType enumerates every frame the server pushes or answers with.
type EventType string

const (
	EvWelcome            EventType = "welcome"
	EvJoined             EventType = "joined"
	EvLeft               EventType = "left"
	EvParticipantJoined  EventType = "participant_joined"
	EvParticipantLeft    EventType = "participant_left"
	EvChatMessage        EventType = "chat_message"
	EvHistory            EventType = "history"
	EvChatPurged         EventType = "chat_purged"
	EvSignal             EventType = "signal"
	EvStatusChanged      EventType = "status_changed"
	EvRecordingStarted   EventType = "recording_started"
	EvRecordingStopped   EventType = "recording_stopped"
	EvRecordingStatus    EventType = "recording_status"
	EvRecordingAvailable EventType = "recording_available"
	EvAck                EventType = "ack"
	EvPong               EventType = "pong"
	EvError              EventType = "error"
)

// Event is a server frame.
type Event struct {
	Type      EventType  `json:"type"`
	RequestID string     `json:"request_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the payload of an error frame.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresentParticipant describes one live connection inside a session.
type PresentParticipant struct {
	ConnectionID string `json:"connection_id"`
	IdentityID   string `json:"identity_id"`
	DisplayName  string `json:"display_name"`
}

// SignalData is the body of a forwarded negotiation frame.
type SignalData struct {
	From           string          `json:"from"`
	FromConnection string          `json:"from_connection"`
	Kind           string          `json:"kind,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

// StatusChange is the body of a status_changed frame.
type StatusChange struct {
	From SessionStatus `json:"from"`
	To   SessionStatus `json:"to"`
}
