package service

import (
	"context"

	"github.com/voxmeet/voxmeet/internal/domain"
	"github.com/voxmeet/voxmeet/internal/hub"
)

// SessionCoordinator reconciles join/leave/reconnect events against the
// shared meeting record and fans derived events out to the room. Every
// handler fully contains its own failures: errors become caller-scoped error
// messages or log lines, never panics across the broadcast boundary.
type SessionCoordinator interface {
	HandleJoin(ctx context.Context, c *hub.Client, roomID string, hint *domain.Profile) error
	HandleLeave(ctx context.Context, c *hub.Client, roomID string) error
	HandleChat(ctx context.Context, c *hub.Client, roomID, text string, hint *domain.Profile) error
	HandleCameraToggle(ctx context.Context, c *hub.Client, roomID string, on bool) error
	HandleMicToggle(ctx context.Context, c *hub.Client, roomID string, on bool) error
	HandleReaction(ctx context.Context, c *hub.Client, roomID, reaction string) error
	HandleEndMeeting(ctx context.Context, c *hub.Client, roomID string) error
	HandleDisconnect(ctx context.Context, c *hub.Client)
}

// Broadcaster is the slice of the hub the coordinator mutates and fans out
// through.
type Broadcaster interface {
	JoinRoom(c *hub.Client, roomID string)
	LeaveRoom(c *hub.Client, roomID string)
	DetachRoom(roomID string) []*hub.Client
	BroadcastToRoom(roomID string, message interface{}, exclude string) error
	RoomCount(roomID string) int
}
