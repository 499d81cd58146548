package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxmeet/voxmeet/internal/auth"
	"github.com/voxmeet/voxmeet/internal/domain"
	"github.com/voxmeet/voxmeet/internal/hub"
	"github.com/voxmeet/voxmeet/internal/service"
	pkglog "github.com/voxmeet/voxmeet/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler authenticates handshakes and routes inbound events to the
// session coordinator.
type WSHandler struct {
	hub      *hub.Hub
	service  service.SessionCoordinator
	verifier *auth.Verifier
}

func NewWSHandler(h *hub.Hub, svc service.SessionCoordinator, verifier *auth.Verifier) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		verifier: verifier,
	}
}

// HandleWebSocket gates the upgrade on the handshake credential. No room
// operation is reachable on an unauthenticated connection: a bad credential
// is rejected with 401 before the socket exists.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.L()

	identity, err := h.verifier.Verify(auth.TokenFromRequest(r))
	if err != nil {
		l.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), identity, h.hub, conn)

	client.SetDisconnectHandler(func(c *hub.Client) {
		h.service.HandleDisconnect(context.Background(), c)
	})

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	l := pkglog.L()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join-room message"))
			return
		}
		if err := h.service.HandleJoin(ctx, client, msg.RoomID, msg.Profile); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("join room failed")
		}

	case domain.MsgTypeLeaveRoom:
		var msg domain.LeaveRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave-room message"))
			return
		}
		if err := h.service.HandleLeave(ctx, client, msg.RoomID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("leave room failed")
		}

	case domain.MsgTypeChatSend:
		var msg domain.ChatSendMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid chat-send message"))
			return
		}
		if err := h.service.HandleChat(ctx, client, msg.RoomID, msg.Text, msg.Profile); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("chat send failed")
		}

	case domain.MsgTypeCameraToggle:
		var msg domain.ToggleMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid camera-toggle message"))
			return
		}
		if err := h.service.HandleCameraToggle(ctx, client, msg.RoomID, msg.On); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("camera toggle failed")
		}

	case domain.MsgTypeMicToggle:
		var msg domain.ToggleMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid mic-toggle message"))
			return
		}
		if err := h.service.HandleMicToggle(ctx, client, msg.RoomID, msg.On); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("mic toggle failed")
		}

	case domain.MsgTypeReaction:
		var msg domain.ReactionMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid reaction message"))
			return
		}
		if err := h.service.HandleReaction(ctx, client, msg.RoomID, msg.Reaction); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("reaction failed")
		}

	case domain.MsgTypeEndMeeting:
		var msg domain.EndMeetingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid end-meeting message"))
			return
		}
		if err := h.service.HandleEndMeeting(ctx, client, msg.RoomID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, client.ID).Msg("end meeting failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}
