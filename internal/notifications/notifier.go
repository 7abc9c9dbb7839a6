package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"foodbridge/internal/models"

	"github.com/redis/go-redis/v9"
)

const presenceChannel = "presence:global"

// Notifier publishes realtime events through Redis so every server instance
// can fan them out to its own sockets. With a nil Redis client it degrades to
// local-only delivery through the hub.
type Notifier struct {
	rdb *redis.Client
	hub *ChatHub
}

// NewNotifier creates a Notifier backed by the given Redis client and hub.
func NewNotifier(rdb *redis.Client, hub *ChatHub) *Notifier {
	return &Notifier{rdb: rdb, hub: hub}
}

func (n *Notifier) publish(ctx context.Context, channel string, event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		log.Printf("Notifier: marshal failed for %s: %v", channel, err)
		return
	}
	if n.rdb == nil {
		// No Redis: deliver locally so single-instance deployments still work.
		n.deliverLocal(channel, string(raw))
		return
	}
	if err := n.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		log.Printf("Notifier: publish to %s failed: %v", channel, err)
		n.deliverLocal(channel, string(raw))
	}
}

func (n *Notifier) deliverLocal(channel, payload string) {
	if n.hub == nil {
		return
	}
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return
	}
	var id uint
	switch {
	case scanChannel(channel, "chat:room:%d", &id):
		n.hub.BroadcastToRoom(id, event, 0)
	case scanChannel(channel, "typing:room:%d", &id):
		n.hub.BroadcastToRoom(id, event, event.UserID)
	case scanChannel(channel, "notify:user:%d", &id):
		n.hub.SendToUser(id, event)
	case channel == presenceChannel:
		n.hub.BroadcastPresence(event.UserID, event.Type)
	}
}

// PublishChatMessage fans a persisted message out to the chat room.
func (n *Notifier) PublishChatMessage(ctx context.Context, msg *models.Message) {
	event := Event{
		Type:    "new-message",
		ChatID:  msg.ChatID,
		UserID:  msg.SenderID,
		Payload: msg,
	}
	if msg.Sender != nil {
		event.Username = msg.Sender.Username
	}
	n.publish(ctx, fmt.Sprintf("chat:room:%d", msg.ChatID), event)
}

// PublishTyping fans a typing indicator out to the chat room. start selects
// between user-typing and user-stop-typing.
func (n *Notifier) PublishTyping(ctx context.Context, chatID, userID uint, username string, start bool) {
	eventType := "user-typing"
	if !start {
		eventType = "user-stop-typing"
	}
	n.publish(ctx, fmt.Sprintf("typing:room:%d", chatID), Event{
		Type:     eventType,
		ChatID:   chatID,
		UserID:   userID,
		Username: username,
		Payload:  map[string]interface{}{"user_id": userID, "username": username},
	})
}

// PublishMessageNotification alerts a chat participant who is not currently
// viewing the room that a message arrived.
func (n *Notifier) PublishMessageNotification(ctx context.Context, recipientID uint, msg *models.Message, unread int) {
	n.publish(ctx, fmt.Sprintf("notify:user:%d", recipientID), Event{
		Type:   "message-notification",
		ChatID: msg.ChatID,
		UserID: msg.SenderID,
		Payload: map[string]interface{}{
			"chat_id":      msg.ChatID,
			"sender_id":    msg.SenderID,
			"preview":      preview(msg.Content),
			"unread_count": unread,
		},
	})
}

// PublishPresence announces an online/offline transition globally.
func (n *Notifier) PublishPresence(ctx context.Context, userID uint, online bool) {
	eventType := "user-online"
	if !online {
		eventType = "user-offline"
	}
	n.publish(ctx, presenceChannel, Event{
		Type:    eventType,
		UserID:  userID,
		Payload: map[string]interface{}{"user_id": userID},
	})
}

// NotifyRequestCreated implements service.RequestEvents.
func (n *Notifier) NotifyRequestCreated(ctx context.Context, req *models.Request) {
	n.publish(ctx, fmt.Sprintf("notify:user:%d", req.DonorID), Event{
		Type:   "request-created",
		UserID: req.ReceiverID,
		Payload: map[string]interface{}{
			"request_id":      req.ID,
			"food_listing_id": req.FoodListingID,
			"status":          req.Status,
			"quantity":        req.RequestedQuantity(),
		},
	})
}

// NotifyRequestUpdated implements service.RequestEvents. Both parties learn
// about every transition; the actor filters its own echo client-side.
func (n *Notifier) NotifyRequestUpdated(ctx context.Context, req *models.Request) {
	payload := map[string]interface{}{
		"request_id":      req.ID,
		"food_listing_id": req.FoodListingID,
		"status":          req.Status,
	}
	for _, userID := range []uint{req.DonorID, req.ReceiverID} {
		n.publish(ctx, fmt.Sprintf("notify:user:%d", userID), Event{
			Type:    "request-updated",
			Payload: payload,
		})
	}
}

func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}

// StartSubscriber subscribes to all realtime channels and invokes handle for
// each message. Returns immediately; delivery runs in a goroutine until ctx
// is cancelled. No-op without Redis.
func (n *Notifier) StartSubscriber(ctx context.Context, handle func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}

	sub := n.rdb.PSubscribe(ctx, "chat:room:*", "typing:room:*", "notify:user:*", presenceChannel)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handle(msg.Channel, msg.Payload)
			}
		}
	}()
	return nil
}
