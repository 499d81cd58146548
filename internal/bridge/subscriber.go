package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxmeet/voxmeet/internal/domain"
	pkglog "github.com/voxmeet/voxmeet/pkg/log"
)

// Broadcaster is the slice of the hub the bridge needs.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{}, exclude string) error
}

// roomReadyPayload is what the transcription bridge publishes when its
// streaming session for a meeting is up.
type roomReadyPayload struct {
	RoomID string `json:"roomId"`
}

// Subscriber relays room-ready notifications from the transcription bridge
// into the room. The coordinator does not produce these events; it only
// passes them through.
type Subscriber struct {
	client  *redis.Client
	channel string
	hub     Broadcaster
	doneCh  chan struct{}
}

func NewSubscriber(client *redis.Client, channel string, hub Broadcaster) *Subscriber {
	return &Subscriber{
		client:  client,
		channel: channel,
		hub:     hub,
		doneCh:  make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes to the bridge channel and relays notifications until ctx is
// done. Reconnects on receive errors.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)
	l := pkglog.L()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.runSubscription(ctx); err != nil && ctx.Err() == nil {
				l.Warn().Err(err).Msg("bridge subscription error, reconnecting in 2s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			return
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for subscription to be active
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handleMessage(msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(payload string) {
	l := pkglog.L()

	var ready roomReadyPayload
	if err := json.Unmarshal([]byte(payload), &ready); err != nil {
		l.Warn().Err(err).Msg("bridge: invalid payload")
		return
	}
	if ready.RoomID == "" {
		return
	}

	msg := &domain.RoomReadyMessage{
		Type:   domain.MsgTypeRoomReady,
		RoomID: ready.RoomID,
	}
	if err := s.hub.BroadcastToRoom(ready.RoomID, msg, ""); err != nil {
		l.Error().Err(err).Str(pkglog.FieldMeetingID, ready.RoomID).Msg("bridge: broadcast error")
	}
}
