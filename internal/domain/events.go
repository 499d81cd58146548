package domain

import "time"

// Meeting event types published to the analytics / notes pipeline.
const (
	EventParticipantJoined       = "participant_joined"
	EventParticipantLeft         = "participant_left"
	EventParticipantDisconnected = "participant_disconnected"
	EventChatMessage             = "chat_message"
	EventMeetingEnded            = "meeting_ended"
)

// MeetingEvent is the envelope produced to the meeting event stream. Delivery
// is strictly best-effort; coordinator behavior never depends on it.
type MeetingEvent struct {
	Type      string    `json:"type"`
	MeetingID string    `json:"meeting_id"`
	UserID    string    `json:"user_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
