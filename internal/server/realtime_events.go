package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"foodbridge/internal/middleware"
	"foodbridge/internal/models"
	"foodbridge/internal/notifications"
	"foodbridge/internal/observability"
)

// Incoming client event types.
const (
	evJoinChat    = "join-chat"
	evLeaveChat   = "leave-chat"
	evSendMessage = "send-message"
	evTypingStart = "typing-start"
	evTypingStop  = "typing-stop"
	evSetOnline   = "set-online"
)

// persistTimeout bounds how long a socket event waits on the database.
const persistTimeout = 10 * time.Second

// inboundEvent is the envelope clients send over the chat socket.
type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type chatRefPayload struct {
	ChatID uint `json:"chat_id"`
}

type sendMessagePayload struct {
	ChatID uint `json:"chat_id"`

	// First-contact alternative to chat_id: the gateway resolves or creates
	// the chat for the listing. receiver_id names the counterpart when the
	// sender is the donor.
	FoodListingID uint `json:"food_listing_id"`
	ReceiverID    uint `json:"receiver_id"`

	Content      string             `json:"content"`
	Type         models.MessageType `json:"type"`
	MediaURL     string             `json:"media_url"`
	MediaCaption string             `json:"media_caption"`
}

// handleChatEvent dispatches one inbound socket frame. Failures are reported
// only to the sender as a message-error event; they are never broadcast.
func (s *Server) handleChatEvent(client *notifications.Client, raw []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.sendSocketError(client, 0, "Malformed event")
		return
	}

	observability.WebSocketEventsTotal.WithLabelValues(ev.Type).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	switch ev.Type {
	case evJoinChat:
		var p chatRefPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == 0 {
			s.sendSocketError(client, 0, "join-chat requires chat_id")
			return
		}
		ok, err := s.chatService.IsParticipant(ctx, p.ChatID, client.UserID)
		if err != nil || !ok {
			s.sendSocketError(client, p.ChatID, "Not a participant in this chat")
			return
		}
		s.chatHub.JoinRoom(client.UserID, p.ChatID)

	case evLeaveChat:
		var p chatRefPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == 0 {
			return
		}
		s.chatHub.LeaveRoom(client.UserID, p.ChatID)

	case evSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || (p.ChatID == 0 && p.FoodListingID == 0) {
			s.sendSocketError(client, 0, "send-message requires chat_id or food_listing_id")
			return
		}
		if p.ChatID == 0 {
			chat, err := s.chatService.FindOrCreate(ctx, client.UserID, p.FoodListingID, p.ReceiverID)
			if err != nil {
				s.sendSocketError(client, 0, socketErrorMessage(err))
				return
			}
			p.ChatID = chat.ID
			s.chatHub.JoinRoom(client.UserID, p.ChatID)
		}
		msg, err := s.chatService.SendMessage(ctx, client.UserID, p.ChatID, p.Content, p.Type, p.MediaURL, p.MediaCaption)
		if err != nil {
			s.sendSocketError(client, p.ChatID, socketErrorMessage(err))
			return
		}
		s.fanOutMessage(ctx, msg)

	case evTypingStart, evTypingStop:
		var p chatRefPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == 0 {
			return
		}
		ok, err := s.chatService.IsParticipant(ctx, p.ChatID, client.UserID)
		if err != nil || !ok {
			return
		}
		username := s.usernameOf(ctx, client.UserID)
		s.notifier.PublishTyping(ctx, p.ChatID, client.UserID, username, ev.Type == evTypingStart)

	case evSetOnline:
		s.notifier.PublishPresence(ctx, client.UserID, true)

	default:
		s.sendSocketError(client, 0, "Unknown event type")
	}
}

// fanOutMessage pushes a persisted message to the chat room and notifies
// participants who are not currently viewing it.
func (s *Server) fanOutMessage(ctx context.Context, msg *models.Message) {
	s.notifier.PublishChatMessage(ctx, msg)

	chat, err := s.chatRepo.GetByID(ctx, msg.ChatID)
	if err != nil {
		middleware.Logger.Error("failed to load chat for notification fan-out",
			"chat_id", msg.ChatID, "error", err)
		return
	}

	for _, p := range chat.Participants {
		if p.ID == msg.SenderID {
			continue
		}
		if s.chatHub.InRoom(p.ID, msg.ChatID) {
			continue
		}
		unread, err := s.chatService.UnreadCount(ctx, p.ID, msg.ChatID)
		if err != nil {
			unread = 0
		}
		s.notifier.PublishMessageNotification(ctx, p.ID, msg, unread)
	}
}

// sendSocketError delivers a message-error event to one client only.
func (s *Server) sendSocketError(client *notifications.Client, chatID uint, message string) {
	event := notifications.Event{
		Type:   "message-error",
		ChatID: chatID,
		Payload: map[string]interface{}{
			"error": message,
		},
	}
	if raw, err := json.Marshal(event); err == nil {
		client.TrySend(raw)
	}
}

// socketErrorMessage strips internal detail from errors before they reach a
// socket client.
func socketErrorMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case models.CodeInternal, models.CodeUnavailable:
			return "Could not deliver message, please retry"
		default:
			return appErr.Message
		}
	}
	return "Could not deliver message, please retry"
}

func (s *Server) usernameOf(ctx context.Context, userID uint) string {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Username
}
