// Package notifications provides real-time delivery of chat messages and
// lifecycle events over WebSocket, fanned out through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// ChatHub manages WebSocket connections for chat rooms. It is room-centric:
// a user subscribes to the chats they are viewing, and every event for a room
// reaches all subscribed users on all their devices.
type ChatHub struct {
	mu sync.RWMutex

	// chatID -> set of userIDs viewing the room
	rooms map[uint]map[uint]struct{}

	// userID -> set of chatIDs they joined
	userRooms map[uint]map[uint]struct{}

	// userID -> set of active clients (multi-device)
	userConns map[uint]map[*Client]bool
}

// Name returns a human-readable identifier for this hub.
func (h *ChatHub) Name() string { return "chat hub" }

// Event is the envelope every realtime payload travels in.
type Event struct {
	Type     string      `json:"type"`
	ChatID   uint        `json:"chat_id,omitempty"`
	UserID   uint        `json:"user_id,omitempty"`
	Username string      `json:"username,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

// NewChatHub creates a new ChatHub instance
func NewChatHub() *ChatHub {
	return &ChatHub{
		rooms:     make(map[uint]map[uint]struct{}),
		userRooms: make(map[uint]map[uint]struct{}),
		userConns: make(map[uint]map[*Client]bool),
	}
}

// Register attaches a user's websocket connection. Returns an error when the
// per-user connection limit is exceeded.
func (h *ChatHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]bool)
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, fmt.Errorf("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = true

	onlineIDs := make([]uint, 0, len(h.userConns))
	for id := range h.userConns {
		if id != userID {
			onlineIDs = append(onlineIDs, id)
		}
	}
	h.mu.Unlock()

	log.Printf("ChatHub: Registered user %d", userID)

	// Initial presence snapshot for the new connection.
	if len(onlineIDs) > 0 {
		snapshot := Event{
			Type:    "connected-users",
			Payload: map[string]interface{}{"user_ids": onlineIDs},
		}
		if raw, err := json.Marshal(snapshot); err == nil {
			client.TrySend(raw)
		}
	}

	h.BroadcastPresence(userID, "user-online")
	return client, nil
}

// UnregisterClient removes one of a user's connections. Room membership and
// the offline broadcast only happen when the last connection goes away.
func (h *ChatHub) UnregisterClient(client *Client) {
	h.mu.Lock()

	clients, ok := h.userConns[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	if len(clients) > 0 {
		h.mu.Unlock()
		log.Printf("ChatHub: Unregistered client for user %d (%d remaining)", client.UserID, len(clients))
		return
	}
	delete(h.userConns, client.UserID)

	if rooms, ok := h.userRooms[client.UserID]; ok {
		for chatID := range rooms {
			if users, ok := h.rooms[chatID]; ok {
				delete(users, client.UserID)
				if len(users) == 0 {
					delete(h.rooms, chatID)
				}
			}
		}
		delete(h.userRooms, client.UserID)
	}
	h.mu.Unlock()

	log.Printf("ChatHub: Unregistered user %d (all connections closed)", client.UserID)
	h.BroadcastPresence(client.UserID, "user-offline")
}

// IsUserOnline reports whether the user has at least one active connection.
func (h *ChatHub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.userConns[userID]
	return ok && len(clients) > 0
}

// JoinRoom subscribes a connected user to a chat room's events.
func (h *ChatHub) JoinRoom(userID, chatID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.userConns[userID]; !ok {
		log.Printf("ChatHub: User %d not connected, cannot join chat %d", userID, chatID)
		return
	}

	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[uint]struct{})
	}
	h.rooms[chatID][userID] = struct{}{}

	if h.userRooms[userID] == nil {
		h.userRooms[userID] = make(map[uint]struct{})
	}
	h.userRooms[userID][chatID] = struct{}{}
}

// LeaveRoom unsubscribes a user from a chat room.
func (h *ChatHub) LeaveRoom(userID, chatID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if users, ok := h.rooms[chatID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if rooms, ok := h.userRooms[userID]; ok {
		delete(rooms, chatID)
	}
}

// InRoom reports whether the user is currently viewing the chat.
func (h *ChatHub) InRoom(userID, chatID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rooms, ok := h.userRooms[userID]; ok {
		_, in := rooms[chatID]
		return in
	}
	return false
}

// RoomUsers returns the userIDs currently viewing a chat.
func (h *ChatHub) RoomUsers(chatID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users, ok := h.rooms[chatID]
	if !ok {
		return []uint{}
	}
	out := make([]uint, 0, len(users))
	for id := range users {
		out = append(out, id)
	}
	return out
}

// BroadcastToRoom sends an event to every user viewing the chat, on all of
// their devices. excludeUserID suppresses the echo to one user; pass zero to
// reach everyone.
func (h *ChatHub) BroadcastToRoom(chatID uint, event Event, excludeUserID uint) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users, ok := h.rooms[chatID]
	if !ok {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		log.Printf("ChatHub: Failed to marshal event: %v", err)
		return
	}

	for userID := range users {
		if excludeUserID != 0 && userID == excludeUserID {
			continue
		}
		if clients, ok := h.userConns[userID]; ok {
			for client := range clients {
				client.TrySend(raw)
			}
		}
	}
}

// SendToUser delivers an event to all of one user's connections, regardless
// of room membership. Used for per-user notifications.
func (h *ChatHub) SendToUser(userID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userConns[userID]
	if !ok {
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		log.Printf("ChatHub: Failed to marshal event: %v", err)
		return
	}
	for client := range clients {
		client.TrySend(raw)
	}
}

// BroadcastPresence announces a user going online or offline to every other
// connected user.
func (h *ChatHub) BroadcastPresence(userID uint, eventType string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event := Event{
		Type:    eventType,
		UserID:  userID,
		Payload: map[string]interface{}{"user_id": userID},
	}
	raw, err := json.Marshal(event)
	if err != nil {
		log.Printf("ChatHub: Failed to marshal presence event: %v", err)
		return
	}

	for id, clients := range h.userConns {
		if id == userID {
			continue
		}
		for client := range clients {
			client.TrySend(raw)
		}
	}
}

// StartWiring connects the hub to Redis pub/sub so events published by other
// instances reach this instance's sockets.
func (h *ChatHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, func(channel, payload string) {
		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("ChatHub: Failed to parse event from channel %s: %v", channel, err)
			return
		}

		var id uint
		switch {
		case scanChannel(channel, "chat:room:%d", &id):
			event.ChatID = id
			h.BroadcastToRoom(id, event, 0)
		case scanChannel(channel, "typing:room:%d", &id):
			// Senders already know they are typing.
			event.ChatID = id
			h.BroadcastToRoom(id, event, event.UserID)
		case scanChannel(channel, "notify:user:%d", &id):
			h.SendToUser(id, event)
		case channel == presenceChannel:
			if event.UserID != 0 {
				h.BroadcastPresence(event.UserID, event.Type)
			}
		default:
			log.Printf("ChatHub: Unknown channel %s", channel)
		}
	})
}

func scanChannel(channel, format string, id *uint) bool {
	_, err := fmt.Sscanf(channel, format, id)
	return err == nil
}

// Shutdown gracefully closes all websocket connections.
func (h *ChatHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.userConns {
		for client := range clients {
			if err := client.Conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"server-shutdown"}`)); err != nil {
				log.Printf("failed to write shutdown message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}

	h.rooms = make(map[uint]map[uint]struct{})
	h.userRooms = make(map[uint]map[uint]struct{})
	h.userConns = make(map[uint]map[*Client]bool)
	return nil
}
