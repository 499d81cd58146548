package registry

import "context"

// RoomDirectory advertises which coordinator instance fans out a room, so
// collaborators like the transcription bridge can locate it.
type RoomDirectory interface {
	Register(ctx context.Context, roomID string) error
	Deregister(ctx context.Context, roomID string) error
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
