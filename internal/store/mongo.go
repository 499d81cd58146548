package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/voxmeet/voxmeet/internal/domain"
)

const (
	meetingsCollection = "meetings"
	usersCollection    = "users"
)

// MongoStore implements MeetingStore and UserStore over the shared MongoDB
// database. Every operation runs under a bounded timeout and is never
// retried here; retries would risk duplicate joins and leaves.
type MongoStore struct {
	meetings  *mongo.Collection
	users     *mongo.Collection
	opTimeout time.Duration
}

func NewMongoStore(db *mongo.Database, opTimeout time.Duration) *MongoStore {
	return &MongoStore{
		meetings:  db.Collection(meetingsCollection),
		users:     db.Collection(usersCollection),
		opTimeout: opTimeout,
	}
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func meetingOID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrMeetingNotFound
	}
	return oid, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*domain.Meeting, error) {
	oid, err := meetingOID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var meeting domain.Meeting
	err = s.meetings.FindOne(ctx, bson.M{"_id": oid}).Decode(&meeting)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return &meeting, nil
}

// AppendJoin performs the join mutation in at most three atomic filtered
// updates, never read-modify-write:
//
//  1. positional push onto an existing participant entry
//  2. guarded insert of a fresh entry (the $ne filter makes concurrent
//     inserts for the same identity mutually exclusive)
//  3. positional push again, for the loser of a concurrent insert race
//
// Every filter also requires the meeting to still be open, so an ended
// meeting accepts no new joins.
func (s *MongoStore) AppendJoin(ctx context.Context, meetingID string, id domain.Identity, at time.Time, reconnect bool) error {
	oid, err := meetingOID(meetingID)
	if err != nil {
		return err
	}
	uid, err := primitive.ObjectIDFromHex(id.UserID)
	if err != nil {
		return fmt.Errorf("%w: bad identity %q", domain.ErrInvalidPayload, id.UserID)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	matched, err := s.pushJoinTime(ctx, oid, uid, at, reconnect)
	if err != nil {
		return err
	}
	if matched {
		return nil
	}

	// Insert case: only matches while no entry for this identity exists.
	entry := domain.Participant{
		UserID:         uid,
		JoinTimes:      []time.Time{at},
		LeaveTimes:     []time.Time{},
		ReconnectCount: 0,
	}
	res, err := s.meetings.UpdateOne(ctx,
		bson.M{"_id": oid, "endedAt": bson.M{"$exists": false}, "participants.userId": bson.M{"$ne": uid}},
		bson.M{"$push": bson.M{"participants": entry}},
	)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// Either the meeting is gone, already ended, or a concurrent join
	// inserted the entry first; the positional push disambiguates the race,
	// a fresh read the rest.
	matched, err = s.pushJoinTime(ctx, oid, uid, at, reconnect)
	if err != nil {
		return err
	}
	if matched {
		return nil
	}

	var meeting domain.Meeting
	err = s.meetings.FindOne(ctx, bson.M{"_id": oid}).Decode(&meeting)
	if err == nil && meeting.Ended() {
		return domain.ErrMeetingEnded
	}
	return domain.ErrMeetingNotFound
}

func (s *MongoStore) pushJoinTime(ctx context.Context, oid, uid primitive.ObjectID, at time.Time, reconnect bool) (bool, error) {
	update := bson.M{"$push": bson.M{"participants.$.joinTimes": at}}
	if reconnect {
		update["$inc"] = bson.M{"participants.$.reconnectCount": 1}
	}

	res, err := s.meetings.UpdateOne(ctx,
		bson.M{"_id": oid, "endedAt": bson.M{"$exists": false}, "participants.userId": uid},
		update,
	)
	if err != nil {
		return false, fmt.Errorf("push join time: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoStore) AppendLeave(ctx context.Context, meetingID string, id domain.Identity, at time.Time) error {
	oid, err := meetingOID(meetingID)
	if err != nil {
		return err
	}
	uid, err := primitive.ObjectIDFromHex(id.UserID)
	if err != nil {
		return fmt.Errorf("%w: bad identity %q", domain.ErrInvalidPayload, id.UserID)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Zero matches means no participant entry; leaving without a prior join
	// is deliberately a no-op.
	_, err = s.meetings.UpdateOne(ctx,
		bson.M{"_id": oid, "participants.userId": uid},
		bson.M{"$push": bson.M{"participants.$.leaveTimes": at}},
	)
	if err != nil {
		return fmt.Errorf("push leave time: %w", err)
	}
	return nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, meetingID string, id domain.Identity, text string, at time.Time) error {
	oid, err := meetingOID(meetingID)
	if err != nil {
		return err
	}
	uid, err := primitive.ObjectIDFromHex(id.UserID)
	if err != nil {
		return fmt.Errorf("%w: bad identity %q", domain.ErrInvalidPayload, id.UserID)
	}
	msg := domain.ChatMessage{SenderID: uid, Text: text, Timestamp: at}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.meetings.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"messages": msg}},
	)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrMeetingNotFound
	}
	return nil
}

func (s *MongoStore) EndMeeting(ctx context.Context, meetingID string, at time.Time) error {
	oid, err := meetingOID(meetingID)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// The endedAt guard makes termination first-writer-wins.
	res, err := s.meetings.UpdateOne(ctx,
		bson.M{"_id": oid, "endedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"endedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	exists, err := s.meetingExists(ctx, oid)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrMeetingEnded
	}
	return domain.ErrMeetingNotFound
}

func (s *MongoStore) meetingExists(ctx context.Context, oid primitive.ObjectID) (bool, error) {
	count, err := s.meetings.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("count meeting: %w", err)
	}
	return count > 0, nil
}

func (s *MongoStore) FindProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad identity %q", domain.ErrInvalidPayload, userID)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc struct {
		ID     primitive.ObjectID `bson:"_id"`
		Name   string             `bson:"name"`
		Avatar string             `bson:"avatar"`
	}
	err = s.users.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	return &domain.Profile{
		ID:     doc.ID.Hex(),
		Name:   doc.Name,
		Avatar: doc.Avatar,
	}, nil
}
