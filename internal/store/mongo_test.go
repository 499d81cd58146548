package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voxmeet/voxmeet/internal/domain"
)

// newTestStore builds a MongoStore on a lazily-connecting client. The tests
// below only exercise paths that fail before any server round trip.
func newTestStore(t *testing.T) *MongoStore {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })
	return NewMongoStore(client.Database("voxmeet_test"), time.Second)
}

func TestMalformedMeetingID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := domain.Identity{UserID: "64f1a2b3c4d5e6f708192a3b"}
	now := time.Now().UTC()

	if _, err := s.FindByID(ctx, "not-an-object-id"); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Errorf("FindByID: expected ErrMeetingNotFound, got %v", err)
	}
	if err := s.AppendJoin(ctx, "not-an-object-id", id, now, false); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Errorf("AppendJoin: expected ErrMeetingNotFound, got %v", err)
	}
	if err := s.AppendLeave(ctx, "not-an-object-id", id, now); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Errorf("AppendLeave: expected ErrMeetingNotFound, got %v", err)
	}
	if err := s.AppendMessage(ctx, "not-an-object-id", id, "hi", now); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Errorf("AppendMessage: expected ErrMeetingNotFound, got %v", err)
	}
	if err := s.EndMeeting(ctx, "not-an-object-id", now); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Errorf("EndMeeting: expected ErrMeetingNotFound, got %v", err)
	}
}

func TestMalformedIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	meetingID := "64f1a2b3c4d5e6f708192a3b"
	bad := domain.Identity{UserID: "not-an-object-id"}
	now := time.Now().UTC()

	if err := s.AppendJoin(ctx, meetingID, bad, now, false); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("AppendJoin: expected ErrInvalidPayload, got %v", err)
	}
	if err := s.AppendLeave(ctx, meetingID, bad, now); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("AppendLeave: expected ErrInvalidPayload, got %v", err)
	}
	if err := s.AppendMessage(ctx, meetingID, bad, "hi", now); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("AppendMessage: expected ErrInvalidPayload, got %v", err)
	}
	if _, err := s.FindProfile(ctx, "not-an-object-id"); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("FindProfile: expected ErrInvalidPayload, got %v", err)
	}
}
