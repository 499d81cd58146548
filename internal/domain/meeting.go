package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participant is the persisted attendance record of one identity within a
// meeting. At most one entry exists per identity; repeated joins append to
// JoinTimes instead of duplicating the entry. LeaveTimes are append-only.
type Participant struct {
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	JoinTimes      []time.Time        `bson:"joinTimes" json:"joinTimes"`
	LeaveTimes     []time.Time        `bson:"leaveTimes" json:"leaveTimes"`
	ReconnectCount int                `bson:"reconnectCount" json:"reconnectCount"`
}

// ChatMessage is a message sub-record on the meeting document. Ordering is
// defined by Timestamp, not insertion order.
type ChatMessage struct {
	SenderID  primitive.ObjectID `bson:"senderId" json:"senderId"`
	Text      string             `bson:"text" json:"text"`
	Timestamp time.Time          `bson:"ts" json:"ts"`
}

// Meeting is the shared meeting document. The participant list is the
// authoritative membership record; the coordinator's in-memory room grouping
// is only a fanout cache over it.
type Meeting struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Host         primitive.ObjectID `bson:"host" json:"host"`
	Topic        string             `bson:"topic" json:"topic"`
	Participants []Participant      `bson:"participants" json:"participants"`
	Messages     []ChatMessage      `bson:"messages" json:"messages"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	EndedAt      *time.Time         `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
}

// Ended reports whether the meeting has been terminated by its host.
func (m *Meeting) Ended() bool {
	return m.EndedAt != nil
}

// Participant returns the participant entry for the given identity, or nil.
func (m *Meeting) Participant(id Identity) *Participant {
	for i := range m.Participants {
		if m.Participants[i].UserID.Hex() == id.UserID {
			return &m.Participants[i]
		}
	}
	return nil
}

// Profile is the display profile of a user, resolved from a join/chat hint or
// from the user store.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
