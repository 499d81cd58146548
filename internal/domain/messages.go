package domain

import "time"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom     = "join-room"
	MsgTypeLeaveRoom    = "leave-room"
	MsgTypeChatSend     = "chat-send"
	MsgTypeCameraToggle = "camera-toggle"
	MsgTypeMicToggle    = "mic-toggle"
	MsgTypeReaction     = "reaction"
	MsgTypeEndMeeting   = "end-meeting"
	MsgTypePing         = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeParticipantJoined       = "participant-joined"
	MsgTypeParticipantLeft         = "participant-left"
	MsgTypeParticipantDisconnected = "participant-disconnected"
	MsgTypeChatMessage             = "chat-message"
	MsgTypePresenceUpdate          = "presence-update"
	MsgTypeMeetingEnded            = "meeting-ended"
	MsgTypeRoomReady               = "room-ready"
	MsgTypeError                   = "error"
	MsgTypePong                    = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinRoomMessage struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"roomId"`
	Profile *Profile `json:"profile,omitempty"`
}

type LeaveRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type ChatSendMessage struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"roomId"`
	Text    string   `json:"text"`
	Profile *Profile `json:"profile,omitempty"`
}

type ToggleMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	On     bool   `json:"on"`
}

type ReactionMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Reaction string `json:"reaction"`
}

type EndMeetingMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// Server -> Client messages

type ParticipantJoinedMessage struct {
	Type    string  `json:"type"`
	RoomID  string  `json:"roomId"`
	Profile Profile `json:"profile"`
}

type ParticipantLeftMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type ParticipantDisconnectedMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type ChatMessageOut struct {
	Type      string    `json:"type"`
	Sender    Profile   `json:"senderProfile"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type PresenceUpdateMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	CameraOn *bool  `json:"cameraOn,omitempty"`
	MicOn    *bool  `json:"micOn,omitempty"`
}

type ReactionOutMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Reaction string `json:"reaction"`
}

type MeetingEndedMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// RoomReadyMessage is relayed from the transcription bridge, not produced by
// the coordinator itself.
type RoomReadyMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
