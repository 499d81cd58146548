package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/voxmeet/voxmeet/internal/domain"
	"github.com/voxmeet/voxmeet/internal/events"
	"github.com/voxmeet/voxmeet/internal/hub"
	"github.com/voxmeet/voxmeet/internal/registry"
)

// fakeMeetingStore mimics the store's atomic filtered-update semantics with a
// single mutex, which gives the same linearization guarantees the real
// MongoDB adapter gets from filtered $push/$inc updates.
type fakeMeetingStore struct {
	mu           sync.Mutex
	meetings     map[string]*domain.Meeting
	leaveAppends int
	joinCalls    int
	failMessages bool
	chatTexts    []string
}

func newFakeMeetingStore() *fakeMeetingStore {
	return &fakeMeetingStore{meetings: make(map[string]*domain.Meeting)}
}

func (f *fakeMeetingStore) addMeeting(host primitive.ObjectID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &domain.Meeting{
		ID:        primitive.NewObjectID(),
		Host:      host,
		Topic:     "standup",
		CreatedAt: time.Now().UTC(),
	}
	f.meetings[m.ID.Hex()] = m
	return m.ID.Hex()
}

func (f *fakeMeetingStore) get(id string) *domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meetings[id]
}

func (f *fakeMeetingStore) FindByID(ctx context.Context, id string) (*domain.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return nil, domain.ErrMeetingNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMeetingStore) AppendJoin(ctx context.Context, meetingID string, id domain.Identity, at time.Time, reconnect bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinCalls++

	m, ok := f.meetings[meetingID]
	if !ok {
		return domain.ErrMeetingNotFound
	}
	if m.Ended() {
		return domain.ErrMeetingEnded
	}

	if p := m.Participant(id); p != nil {
		p.JoinTimes = append(p.JoinTimes, at)
		if reconnect {
			p.ReconnectCount++
		}
		return nil
	}

	uid, err := primitive.ObjectIDFromHex(id.UserID)
	if err != nil {
		return domain.ErrInvalidPayload
	}
	m.Participants = append(m.Participants, domain.Participant{
		UserID:     uid,
		JoinTimes:  []time.Time{at},
		LeaveTimes: []time.Time{},
	})
	return nil
}

func (f *fakeMeetingStore) AppendLeave(ctx context.Context, meetingID string, id domain.Identity, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.meetings[meetingID]
	if !ok {
		return nil
	}
	if p := m.Participant(id); p != nil {
		p.LeaveTimes = append(p.LeaveTimes, at)
		f.leaveAppends++
	}
	return nil
}

func (f *fakeMeetingStore) AppendMessage(ctx context.Context, meetingID string, id domain.Identity, text string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failMessages {
		return domain.ErrStoreUnavailable
	}
	if _, ok := f.meetings[meetingID]; !ok {
		return domain.ErrMeetingNotFound
	}
	f.chatTexts = append(f.chatTexts, text)
	return nil
}

func (f *fakeMeetingStore) EndMeeting(ctx context.Context, meetingID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.meetings[meetingID]
	if !ok {
		return domain.ErrMeetingNotFound
	}
	if m.Ended() {
		return domain.ErrMeetingEnded
	}
	m.EndedAt = &at
	return nil
}

type fakeUserStore struct {
	profiles map[string]domain.Profile
}

func (f *fakeUserStore) FindProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		copied := p
		return &copied, nil
	}
	return nil, domain.ErrUserNotFound
}

type broadcastRecord struct {
	RoomID  string
	Message interface{}
}

// fakeBroadcaster records fanout instead of delivering over sockets.
type fakeBroadcaster struct {
	mu     sync.Mutex
	rooms  map[string]map[string]*hub.Client
	events []broadcastRecord
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{rooms: make(map[string]map[string]*hub.Client)}
}

func (f *fakeBroadcaster) JoinRoom(c *hub.Client, roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomID]; !ok {
		f.rooms[roomID] = make(map[string]*hub.Client)
	}
	f.rooms[roomID][c.ID] = c
}

func (f *fakeBroadcaster) LeaveRoom(c *hub.Client, roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[roomID], c.ID)
}

func (f *fakeBroadcaster) DetachRoom(roomID string) []*hub.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	clients := make([]*hub.Client, 0, len(f.rooms[roomID]))
	for _, c := range f.rooms[roomID] {
		clients = append(clients, c)
	}
	delete(f.rooms, roomID)
	return clients
}

func (f *fakeBroadcaster) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, broadcastRecord{RoomID: roomID, Message: message})
	return nil
}

func (f *fakeBroadcaster) RoomCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[roomID])
}

func (f *fakeBroadcaster) recorded(msgType string) []broadcastRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcastRecord
	for _, rec := range f.events {
		data, _ := json.Marshal(rec.Message)
		var base domain.BaseMessage
		json.Unmarshal(data, &base)
		if base.Type == msgType {
			out = append(out, rec)
		}
	}
	return out
}

type fixture struct {
	coordinator SessionCoordinator
	store       *fakeMeetingStore
	users       *fakeUserStore
	broadcaster *fakeBroadcaster
	connections *registry.ConnectionRegistry
}

func newFixture(grace time.Duration) *fixture {
	st := newFakeMeetingStore()
	users := &fakeUserStore{profiles: make(map[string]domain.Profile)}
	b := newFakeBroadcaster()
	conns := registry.NewConnectionRegistry(grace)
	return &fixture{
		coordinator: NewSessionCoordinator(b, st, users, conns, registry.NoopDirectory{}, events.NoopProducer{}),
		store:       st,
		users:       users,
		broadcaster: b,
		connections: conns,
	}
}

func newTestClient(identity domain.Identity) *hub.Client {
	return hub.NewClient(primitive.NewObjectID().Hex(), identity, nil, nil)
}

// readMessage drains one queued caller-scoped message from the client.
func readMessage(t *testing.T, c *hub.Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message queued for client")
		return nil
	}
}

func TestJoinTwiceCreatesSingleParticipant(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c, meetingID, nil))
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c, meetingID, nil))

	m := f.store.get(meetingID)
	require.Len(t, m.Participants, 1)
	assert.Len(t, m.Participants[0].JoinTimes, 2)
	assert.Equal(t, 0, m.Participants[0].ReconnectCount)
	assert.Len(t, f.broadcaster.recorded(domain.MsgTypeParticipantJoined), 2)
}

func TestConcurrentJoinsProduceSingleEntry(t *testing.T) {
	const n = 8

	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestClient(identity)
			f.coordinator.HandleJoin(context.Background(), c, meetingID, nil)
		}()
	}
	wg.Wait()

	m := f.store.get(meetingID)
	require.Len(t, m.Participants, 1)
	assert.Len(t, m.Participants[0].JoinTimes, n)
}

func TestReconnectCounting(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c, meetingID, nil))
	f.coordinator.HandleDisconnect(context.Background(), c)

	c2 := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c2, meetingID, nil))

	m := f.store.get(meetingID)
	require.Len(t, m.Participants, 1)
	assert.Equal(t, 1, m.Participants[0].ReconnectCount)
	assert.Len(t, m.Participants[0].LeaveTimes, 1)
}

func TestReconnectOutsideGraceDoesNotCount(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c, meetingID, nil))

	// Disconnect recorded well outside the grace window.
	f.connections.MarkDisconnected(identity, time.Now().UTC().Add(-3*time.Minute))

	c2 := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c2, meetingID, nil))

	m := f.store.get(meetingID)
	assert.Equal(t, 0, m.Participants[0].ReconnectCount)
}

func TestJoinUnknownMeetingErrorsCallerOnly(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}

	c := newTestClient(identity)
	err := f.coordinator.HandleJoin(context.Background(), c, primitive.NewObjectID().Hex(), nil)
	require.ErrorIs(t, err, domain.ErrMeetingNotFound)

	msg := readMessage(t, c)
	assert.Equal(t, domain.MsgTypeError, msg["type"])
	assert.Equal(t, domain.ErrCodeNotFound, msg["code"])
	assert.Empty(t, f.broadcaster.recorded(domain.MsgTypeParticipantJoined))
	assert.Empty(t, c.Room())
}

func TestJoinProfileHintNeverOverridesIdentity(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	hint := &domain.Profile{ID: "someone-else", Name: "Mallory", Avatar: "x.png"}
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c, meetingID, hint))

	joined := f.broadcaster.recorded(domain.MsgTypeParticipantJoined)
	require.Len(t, joined, 1)
	profile := joined[0].Message.(*domain.ParticipantJoinedMessage).Profile
	assert.Equal(t, identity.UserID, profile.ID)
	assert.Equal(t, "Mallory", profile.Name)
}

func TestHostExclusivity(t *testing.T) {
	f := newFixture(120 * time.Second)
	host := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	guest := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	hostOID, _ := primitive.ObjectIDFromHex(host.UserID)
	meetingID := f.store.addMeeting(hostOID)

	hostClient := newTestClient(host)
	guestClient := newTestClient(guest)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), hostClient, meetingID, nil))
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), guestClient, meetingID, nil))

	// Non-host attempt: caller-scoped error, no mutation, no fanout.
	err := f.coordinator.HandleEndMeeting(context.Background(), guestClient, meetingID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	msg := readMessage(t, guestClient)
	assert.Equal(t, domain.ErrCodeForbidden, msg["code"])
	assert.Nil(t, f.store.get(meetingID).EndedAt)

	// Host attempt: ended exactly once, every member notified and detached.
	require.NoError(t, f.coordinator.HandleEndMeeting(context.Background(), hostClient, meetingID))
	require.NotNil(t, f.store.get(meetingID).EndedAt)
	assert.Equal(t, 0, f.broadcaster.RoomCount(meetingID))

	for _, c := range []*hub.Client{hostClient, guestClient} {
		ended := readMessage(t, c)
		assert.Equal(t, domain.MsgTypeMeetingEnded, ended["type"])
		assert.Empty(t, c.Room())
	}

	// Ending twice fails without touching the ended timestamp again.
	endedAt := *f.store.get(meetingID).EndedAt
	err = f.coordinator.HandleEndMeeting(context.Background(), hostClient, meetingID)
	require.ErrorIs(t, err, domain.ErrMeetingEnded)
	assert.Equal(t, endedAt, *f.store.get(meetingID).EndedAt)
}

func TestLeaveWithoutPriorJoinBroadcastsWithoutMutation(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	// Grouped locally but never recorded on the meeting document.
	c := newTestClient(identity)
	f.broadcaster.JoinRoom(c, meetingID)
	c.SetRoom(meetingID)

	require.NoError(t, f.coordinator.HandleLeave(context.Background(), c, meetingID))
	assert.Equal(t, 0, f.store.leaveAppends)
	assert.Len(t, f.broadcaster.recorded(domain.MsgTypeParticipantLeft), 1)
}

func TestLeaveRequiresMatchingRoom(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	err := f.coordinator.HandleLeave(context.Background(), c, meetingID)
	require.ErrorIs(t, err, domain.ErrInvalidPayload)

	msg := readMessage(t, c)
	assert.Equal(t, domain.ErrCodeBadRequest, msg["code"])
	assert.Empty(t, f.broadcaster.recorded(domain.MsgTypeParticipantLeft))
}

func TestDisconnectWithoutRoomTouchesNoStore(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}

	c := newTestClient(identity)
	f.coordinator.HandleDisconnect(context.Background(), c)

	assert.Equal(t, 0, f.store.joinCalls)
	assert.Equal(t, 0, f.store.leaveAppends)
	assert.Empty(t, f.broadcaster.events)
	assert.True(t, f.connections.WithinGrace(identity, time.Now().UTC()))
}

func TestDisconnectWithRoomBroadcastsDisconnected(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), c, meetingID, nil))
	f.coordinator.HandleDisconnect(context.Background(), c)

	m := f.store.get(meetingID)
	assert.Len(t, m.Participants[0].LeaveTimes, 1)
	assert.Len(t, f.broadcaster.recorded(domain.MsgTypeParticipantDisconnected), 1)
	assert.Empty(t, f.broadcaster.recorded(domain.MsgTypeParticipantLeft))
	assert.Empty(t, c.Room())
}

func TestChatRejectsEmptyText(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	err := f.coordinator.HandleChat(context.Background(), c, meetingID, "   ", nil)
	require.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.Empty(t, f.broadcaster.recorded(domain.MsgTypeChatMessage))
	assert.Empty(t, f.store.chatTexts)
}

func TestChatBroadcastsDespitePersistenceFailure(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())
	f.store.failMessages = true

	c := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleChat(context.Background(), c, meetingID, "hello", &domain.Profile{Name: "Ana"}))

	messages := f.broadcaster.recorded(domain.MsgTypeChatMessage)
	require.Len(t, messages, 1)
	out := messages[0].Message.(*domain.ChatMessageOut)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, "Ana", out.Sender.Name)
}

func TestPresenceAndReactionArePureFanout(t *testing.T) {
	f := newFixture(120 * time.Second)
	identity := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	meetingID := f.store.addMeeting(primitive.NewObjectID())

	c := newTestClient(identity)
	require.NoError(t, f.coordinator.HandleCameraToggle(context.Background(), c, meetingID, true))
	require.NoError(t, f.coordinator.HandleMicToggle(context.Background(), c, meetingID, false))
	require.NoError(t, f.coordinator.HandleReaction(context.Background(), c, meetingID, "👏"))

	updates := f.broadcaster.recorded(domain.MsgTypePresenceUpdate)
	require.Len(t, updates, 2)
	camera := updates[0].Message.(*domain.PresenceUpdateMessage)
	require.NotNil(t, camera.CameraOn)
	assert.True(t, *camera.CameraOn)
	assert.Nil(t, camera.MicOn)

	mic := updates[1].Message.(*domain.PresenceUpdateMessage)
	require.NotNil(t, mic.MicOn)
	assert.False(t, *mic.MicOn)

	assert.Len(t, f.broadcaster.recorded(domain.MsgTypeReaction), 1)
	assert.Empty(t, f.store.chatTexts)
}

func TestMeetingLifecycleEndToEnd(t *testing.T) {
	f := newFixture(120 * time.Second)
	host := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	guest := domain.Identity{UserID: primitive.NewObjectID().Hex()}
	hostOID, _ := primitive.ObjectIDFromHex(host.UserID)
	meetingID := f.store.addMeeting(hostOID)
	f.users.profiles[host.UserID] = domain.Profile{Name: "Alice", Avatar: "a.png"}

	hostClient := newTestClient(host)
	guestClient := newTestClient(guest)
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), hostClient, meetingID, nil))
	require.NoError(t, f.coordinator.HandleJoin(context.Background(), guestClient, meetingID, nil))

	require.NoError(t, f.coordinator.HandleChat(context.Background(), hostClient, meetingID, "hello", nil))
	messages := f.broadcaster.recorded(domain.MsgTypeChatMessage)
	require.Len(t, messages, 1)
	assert.Equal(t, "Alice", messages[0].Message.(*domain.ChatMessageOut).Sender.Name)
	assert.Equal(t, []string{"hello"}, f.store.chatTexts)

	require.NoError(t, f.coordinator.HandleEndMeeting(context.Background(), hostClient, meetingID))

	// A join after termination is rejected and produces no stray
	// participant-joined fanout.
	joinedBefore := len(f.broadcaster.recorded(domain.MsgTypeParticipantJoined))
	rejoined := newTestClient(guest)
	err := f.coordinator.HandleJoin(context.Background(), rejoined, meetingID, nil)
	require.ErrorIs(t, err, domain.ErrMeetingEnded)
	assert.Len(t, f.broadcaster.recorded(domain.MsgTypeParticipantJoined), joinedBefore)
}
