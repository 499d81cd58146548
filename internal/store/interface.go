package store

import (
	"context"
	"time"

	"github.com/voxmeet/voxmeet/internal/domain"
)

// MeetingStore is the meeting-record collaborator. All mutations use the
// store's atomic filtered-update primitives so concurrent connections can
// never produce lost updates or duplicate participant entries; none of them
// retry on failure.
type MeetingStore interface {
	FindByID(ctx context.Context, id string) (*domain.Meeting, error)

	// AppendJoin records a join for the identity at the given time. The first
	// join for an identity inserts its participant entry; later joins append
	// to its join-time list. When reconnect is set and the entry already
	// exists, the reconnect counter is incremented in the same atomic update.
	// An ended meeting accepts no joins and yields domain.ErrMeetingEnded.
	AppendJoin(ctx context.Context, meetingID string, id domain.Identity, at time.Time, reconnect bool) error

	// AppendLeave appends a leave time to the identity's participant entry.
	// A missing entry is a no-op, not an error.
	AppendLeave(ctx context.Context, meetingID string, id domain.Identity, at time.Time) error

	// AppendMessage appends a chat message to the meeting's message list.
	AppendMessage(ctx context.Context, meetingID string, id domain.Identity, text string, at time.Time) error

	// EndMeeting sets the ended timestamp exactly once. A meeting that is
	// already ended yields domain.ErrMeetingEnded.
	EndMeeting(ctx context.Context, meetingID string, at time.Time) error
}

// UserStore resolves display profiles from the account service's collection.
type UserStore interface {
	FindProfile(ctx context.Context, userID string) (*domain.Profile, error)
}
