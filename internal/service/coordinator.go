package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/voxmeet/voxmeet/internal/domain"
	"github.com/voxmeet/voxmeet/internal/events"
	"github.com/voxmeet/voxmeet/internal/hub"
	"github.com/voxmeet/voxmeet/internal/registry"
	"github.com/voxmeet/voxmeet/internal/store"
	pkglog "github.com/voxmeet/voxmeet/pkg/log"
)

type coordinator struct {
	hub         Broadcaster
	meetings    store.MeetingStore
	users       store.UserStore
	connections *registry.ConnectionRegistry
	directory   registry.RoomDirectory
	producer    events.Producer
}

func NewSessionCoordinator(
	b Broadcaster,
	meetings store.MeetingStore,
	users store.UserStore,
	connections *registry.ConnectionRegistry,
	directory registry.RoomDirectory,
	producer events.Producer,
) SessionCoordinator {
	return &coordinator{
		hub:         b,
		meetings:    meetings,
		users:       users,
		connections: connections,
		directory:   directory,
		producer:    producer,
	}
}

// HandleJoin registers the connection for fanout, then records the join on
// the meeting document with the store's atomic filtered updates. The
// participant-joined broadcast happens unconditionally on success so every
// roster stays consistent across insert and repeat-join cases.
func (s *coordinator) HandleJoin(ctx context.Context, c *hub.Client, roomID string, hint *domain.Profile) error {
	if roomID == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "roomId is required"))
		return domain.ErrInvalidPayload
	}

	now := time.Now().UTC()

	s.hub.JoinRoom(c, roomID)
	c.SetRoom(roomID)
	if s.hub.RoomCount(roomID) == 1 {
		if err := s.directory.Register(ctx, roomID); err != nil {
			logger := pkglog.L()
			logger.Warn().Err(err).Str(pkglog.FieldMeetingID, roomID).Msg("room directory register failed")
		}
	}

	profile := s.resolveProfile(ctx, c.Identity, hint)
	reconnect := s.connections.WithinGrace(c.Identity, now)

	if err := s.meetings.AppendJoin(ctx, roomID, c.Identity, now, reconnect); err != nil {
		logger := pkglog.L()
		logger.Error().Err(err).
			Str(pkglog.FieldMeetingID, roomID).
			Str(pkglog.FieldUserID, c.Identity.UserID).
			Msg("join mutation failed")
		s.detachLocal(ctx, c, roomID)
		c.SendMessage(errorMessageFor(err, "failed to join meeting"))
		return err
	}

	s.publish(ctx, domain.EventParticipantJoined, roomID, c.Identity.UserID, "")

	s.hub.BroadcastToRoom(roomID, &domain.ParticipantJoinedMessage{
		Type:    domain.MsgTypeParticipantJoined,
		RoomID:  roomID,
		Profile: profile,
	}, "")
	return nil
}

// HandleLeave appends a leave time (a no-op when the identity never joined)
// and broadcasts participant-left either way, so every client's roster view
// converges even if the store had no entry to update.
func (s *coordinator) HandleLeave(ctx context.Context, c *hub.Client, roomID string) error {
	if roomID == "" || roomID != c.Room() {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "not joined to this room"))
		return domain.ErrInvalidPayload
	}

	now := time.Now().UTC()

	if err := s.meetings.AppendLeave(ctx, roomID, c.Identity, now); err != nil {
		logger := pkglog.L()
		logger.Error().Err(err).
			Str(pkglog.FieldMeetingID, roomID).
			Str(pkglog.FieldUserID, c.Identity.UserID).
			Msg("leave mutation failed")
		s.detachLocal(ctx, c, roomID)
		c.SendMessage(errorMessageFor(err, "failed to leave meeting"))
		return err
	}

	s.detachLocal(ctx, c, roomID)
	s.publish(ctx, domain.EventParticipantLeft, roomID, c.Identity.UserID, "")

	s.hub.BroadcastToRoom(roomID, &domain.ParticipantLeftMessage{
		Type:   domain.MsgTypeParticipantLeft,
		UserID: c.Identity.UserID,
		RoomID: roomID,
	}, "")
	return nil
}

// HandleChat relays the message to the room and persists it to the meeting
// document. Live delivery is prioritized over durability: a failed append is
// logged and the broadcast still goes out.
func (s *coordinator) HandleChat(ctx context.Context, c *hub.Client, roomID, text string, hint *domain.Profile) error {
	text = strings.TrimSpace(text)
	if roomID == "" || text == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "roomId and text are required"))
		return domain.ErrInvalidPayload
	}

	now := time.Now().UTC()
	profile := s.resolveProfile(ctx, c.Identity, hint)

	if err := s.meetings.AppendMessage(ctx, roomID, c.Identity, text, now); err != nil {
		logger := pkglog.L()
		logger.Error().Err(err).
			Str(pkglog.FieldMeetingID, roomID).
			Str(pkglog.FieldUserID, c.Identity.UserID).
			Msg("chat persistence failed")
	}

	s.publish(ctx, domain.EventChatMessage, roomID, c.Identity.UserID, text)

	s.hub.BroadcastToRoom(roomID, &domain.ChatMessageOut{
		Type:      domain.MsgTypeChatMessage,
		Sender:    profile,
		Text:      text,
		Timestamp: now,
	}, "")
	return nil
}

// HandleCameraToggle is pure fanout; nothing is persisted.
func (s *coordinator) HandleCameraToggle(ctx context.Context, c *hub.Client, roomID string, on bool) error {
	if roomID == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "roomId is required"))
		return domain.ErrInvalidPayload
	}

	s.hub.BroadcastToRoom(roomID, &domain.PresenceUpdateMessage{
		Type:     domain.MsgTypePresenceUpdate,
		UserID:   c.Identity.UserID,
		CameraOn: &on,
	}, "")
	return nil
}

// HandleMicToggle is pure fanout; nothing is persisted.
func (s *coordinator) HandleMicToggle(ctx context.Context, c *hub.Client, roomID string, on bool) error {
	if roomID == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "roomId is required"))
		return domain.ErrInvalidPayload
	}

	s.hub.BroadcastToRoom(roomID, &domain.PresenceUpdateMessage{
		Type:   domain.MsgTypePresenceUpdate,
		UserID: c.Identity.UserID,
		MicOn:  &on,
	}, "")
	return nil
}

// HandleReaction is ephemeral fanout; receivers expire reactions themselves.
func (s *coordinator) HandleReaction(ctx context.Context, c *hub.Client, roomID, reaction string) error {
	if roomID == "" || reaction == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "roomId and reaction are required"))
		return domain.ErrInvalidPayload
	}

	s.hub.BroadcastToRoom(roomID, &domain.ReactionOutMessage{
		Type:     domain.MsgTypeReaction,
		UserID:   c.Identity.UserID,
		Reaction: reaction,
	}, "")
	return nil
}

// HandleEndMeeting verifies host authority against a fresh read of the
// meeting record, sets the ended timestamp exactly once, then notifies and
// detaches every locally-registered connection. The connections stay open;
// they are only excluded from future fanout.
func (s *coordinator) HandleEndMeeting(ctx context.Context, c *hub.Client, roomID string) error {
	if roomID == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "roomId is required"))
		return domain.ErrInvalidPayload
	}

	meeting, err := s.meetings.FindByID(ctx, roomID)
	if err != nil {
		c.SendMessage(errorMessageFor(err, "failed to end meeting"))
		return err
	}

	if meeting.Host.Hex() != c.Identity.UserID {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the host can end the meeting"))
		return domain.ErrForbidden
	}

	now := time.Now().UTC()
	if err := s.meetings.EndMeeting(ctx, roomID, now); err != nil {
		c.SendMessage(errorMessageFor(err, "failed to end meeting"))
		return err
	}

	s.publish(ctx, domain.EventMeetingEnded, roomID, c.Identity.UserID, "")

	// Deliver the termination directly to each detached client instead of
	// through the async broadcast queue, so no client is detached before the
	// event reaches it.
	ended := &domain.MeetingEndedMessage{
		Type:   domain.MsgTypeMeetingEnded,
		RoomID: roomID,
	}
	for _, member := range s.hub.DetachRoom(roomID) {
		member.SendMessage(ended)
		member.ClearRoom()
	}

	if err := s.directory.Deregister(ctx, roomID); err != nil {
		logger := pkglog.L()
		logger.Warn().Err(err).Str(pkglog.FieldMeetingID, roomID).Msg("room directory deregister failed")
	}
	return nil
}

// HandleDisconnect is best-effort teardown bookkeeping: it records the
// disconnect time for the reconnect-grace check, appends a leave time when a
// room was joined, and broadcasts participant-disconnected. Store failures
// are logged and never block teardown.
func (s *coordinator) HandleDisconnect(ctx context.Context, c *hub.Client) {
	now := time.Now().UTC()
	s.connections.MarkDisconnected(c.Identity, now)

	roomID := c.Room()
	if roomID == "" {
		return
	}

	if err := s.meetings.AppendLeave(ctx, roomID, c.Identity, now); err != nil {
		logger := pkglog.L()
		logger.Error().Err(err).
			Str(pkglog.FieldMeetingID, roomID).
			Str(pkglog.FieldUserID, c.Identity.UserID).
			Msg("disconnect leave mutation failed")
	}

	s.detachLocal(ctx, c, roomID)
	s.publish(ctx, domain.EventParticipantDisconnected, roomID, c.Identity.UserID, "")

	s.hub.BroadcastToRoom(roomID, &domain.ParticipantDisconnectedMessage{
		Type:   domain.MsgTypeParticipantDisconnected,
		UserID: c.Identity.UserID,
		RoomID: roomID,
	}, "")
}

// detachLocal removes the connection from local fanout membership and drops
// the room's directory advertisement when it empties.
func (s *coordinator) detachLocal(ctx context.Context, c *hub.Client, roomID string) {
	s.hub.LeaveRoom(c, roomID)
	c.ClearRoom()

	if s.hub.RoomCount(roomID) == 0 {
		if err := s.directory.Deregister(ctx, roomID); err != nil {
			logger := pkglog.L()
			logger.Warn().Err(err).Str(pkglog.FieldMeetingID, roomID).Msg("room directory deregister failed")
		}
	}
}

// resolveProfile prefers a caller-supplied hint over a user-store lookup, but
// the profile id is always the authenticated identity, never payload data.
func (s *coordinator) resolveProfile(ctx context.Context, id domain.Identity, hint *domain.Profile) domain.Profile {
	if hint != nil && hint.Name != "" {
		profile := *hint
		profile.ID = id.UserID
		return profile
	}

	profile, err := s.users.FindProfile(ctx, id.UserID)
	if err != nil {
		logger := pkglog.L()
		logger.Warn().Err(err).Str(pkglog.FieldUserID, id.UserID).Msg("profile lookup failed")
		return domain.Profile{ID: id.UserID}
	}
	profile.ID = id.UserID
	return *profile
}

func (s *coordinator) publish(ctx context.Context, eventType, meetingID, userID, text string) {
	err := s.producer.Publish(ctx, &domain.MeetingEvent{
		Type:      eventType,
		MeetingID: meetingID,
		UserID:    userID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger := pkglog.L()
		logger.Warn().Err(err).Str(pkglog.FieldEvent, eventType).Msg("event publish failed")
	}
}

// errorMessageFor maps store/domain errors onto caller-scoped error codes.
func errorMessageFor(err error, fallback string) *domain.ErrorMessage {
	switch {
	case errors.Is(err, domain.ErrMeetingNotFound):
		return domain.NewErrorMessage(domain.ErrCodeNotFound, "meeting not found")
	case errors.Is(err, domain.ErrMeetingEnded):
		return domain.NewErrorMessage(domain.ErrCodeBadRequest, "meeting already ended")
	case errors.Is(err, domain.ErrForbidden):
		return domain.NewErrorMessage(domain.ErrCodeForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidPayload):
		return domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid payload")
	default:
		return domain.NewErrorMessage(domain.ErrCodeInternalError, fallback)
	}
}
