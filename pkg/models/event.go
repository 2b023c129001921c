package models

import "time"

// EventType names one of the real-time delivery event kinds a session
// subscriber may receive.
type EventType string

const (
	EventProcessingStatus EventType = "processing_status"
	EventNewMessage       EventType = "new_message"
	EventSessionCreated   EventType = "session_created"
	EventError            EventType = "error"
)

// DeliveryEvent is a single message pushed to a session's subscribers.
//
// Seq is a monotonically increasing, per-session counter assigned by the
// realtime hub at publish time; clients use it to detect gaps in an
// at-least-once delivery stream.
type DeliveryEvent struct {
	Type      EventType   `json:"type"`
	SessionID int64       `json:"session_id"`
	Seq       uint64      `json:"event_seq"`
	Payload   interface{} `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ProcessingStatusPayload describes a change in a session's in-flight
// generation state.
type ProcessingStatusPayload struct {
	Stage string `json:"stage"`
	Model string `json:"model,omitempty"`
}

// ErrorPayload carries a developer-facing failure description. It is never
// shown to the end user directly; the accompanying new_message event
// carries the user-visible text.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionCreatedPayload is emitted once, the first time a null session id
// causes the coordinator to create a new session.
type SessionCreatedPayload struct {
	SessionID int64  `json:"session_id"`
	Title     string `json:"title"`
}

// NewMessagePayload is the terminal event for one user turn.
type NewMessagePayload struct {
	Role          Role            `json:"role"`
	Content       string          `json:"content"`
	ModelUsed     string          `json:"model_used,omitempty"`
	ConsensusData *ConsensusResult `json:"consensus_data,omitempty"`
}
