package notifications

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// register attaches a client without a live socket. The hub only touches the
// Send channel until pumps start, so nil conns are fine here.
func register(t *testing.T, h *ChatHub, userID uint) *Client {
	t.Helper()
	client, err := h.Register(userID, nil)
	require.NoError(t, err)
	return client
}

func drain(c *Client) []Event {
	var events []Event
	for {
		select {
		case raw := <-c.Send:
			var ev Event
			if err := json.Unmarshal(raw, &ev); err == nil {
				events = append(events, ev)
			}
		default:
			return events
		}
	}
}

func eventTypes(events []Event) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestRegisterAndPresence(t *testing.T) {
	h := NewChatHub()

	alice := register(t, h, 1)
	assert.True(t, h.IsUserOnline(1))
	assert.Empty(t, drain(alice), "first user gets no presence snapshot")

	bob := register(t, h, 2)
	assert.Contains(t, eventTypes(drain(bob)), "connected-users")
	assert.Contains(t, eventTypes(drain(alice)), "user-online")
}

func TestConnectionLimit(t *testing.T) {
	h := NewChatHub()

	for i := 0; i < maxConnsPerUser; i++ {
		register(t, h, 1)
	}
	_, err := h.Register(1, nil)
	assert.Error(t, err)
}

func TestRoomMembership(t *testing.T) {
	h := NewChatHub()
	register(t, h, 1)

	t.Run("join requires a connection", func(t *testing.T) {
		h.JoinRoom(99, 10)
		assert.False(t, h.InRoom(99, 10))
	})

	t.Run("join and leave", func(t *testing.T) {
		h.JoinRoom(1, 10)
		assert.True(t, h.InRoom(1, 10))
		assert.Equal(t, []uint{1}, h.RoomUsers(10))

		h.LeaveRoom(1, 10)
		assert.False(t, h.InRoom(1, 10))
		assert.Empty(t, h.RoomUsers(10))
	})
}

func TestBroadcastToRoom(t *testing.T) {
	h := NewChatHub()
	alice := register(t, h, 1)
	bob := register(t, h, 2)
	carol := register(t, h, 3)
	drain(alice)
	drain(bob)
	drain(carol)

	h.JoinRoom(1, 10)
	h.JoinRoom(2, 10)
	// Carol stays out of the room.

	h.BroadcastToRoom(10, Event{Type: "new-message", ChatID: 10}, 0)

	assert.Contains(t, eventTypes(drain(alice)), "new-message")
	assert.Contains(t, eventTypes(drain(bob)), "new-message")
	assert.Empty(t, drain(carol))

	t.Run("exclude suppresses the echo", func(t *testing.T) {
		h.BroadcastToRoom(10, Event{Type: "user-typing", ChatID: 10, UserID: 1}, 1)
		assert.Empty(t, drain(alice))
		assert.Contains(t, eventTypes(drain(bob)), "user-typing")
	})
}

func TestSendToUserReachesAllDevices(t *testing.T) {
	h := NewChatHub()
	phone := register(t, h, 1)
	laptop := register(t, h, 1)
	drain(phone)
	drain(laptop)

	h.SendToUser(1, Event{Type: "message-notification", ChatID: 10})

	assert.Contains(t, eventTypes(drain(phone)), "message-notification")
	assert.Contains(t, eventTypes(drain(laptop)), "message-notification")
}

func TestUnregisterMultiDevice(t *testing.T) {
	h := NewChatHub()
	phone := register(t, h, 1)
	laptop := register(t, h, 1)
	watcher := register(t, h, 2)
	drain(watcher)

	h.JoinRoom(1, 10)

	// Dropping one device keeps the user online and in the room.
	h.UnregisterClient(phone)
	assert.True(t, h.IsUserOnline(1))
	assert.True(t, h.InRoom(1, 10))
	assert.Empty(t, drain(watcher))

	// The last device going away cleans up rooms and announces offline.
	h.UnregisterClient(laptop)
	assert.False(t, h.IsUserOnline(1))
	assert.False(t, h.InRoom(1, 10))
	assert.Contains(t, eventTypes(drain(watcher)), "user-offline")
}

func TestTrySendDropsOnFullBuffer(t *testing.T) {
	h := NewChatHub()
	client := register(t, h, 1)

	payload := []byte(`{"type":"new-message"}`)
	for i := 0; i < cap(client.Send)+10; i++ {
		client.TrySend(payload)
	}

	// The buffer holds a full window of messages; nothing blocked or panicked.
	assert.Equal(t, cap(client.Send), len(client.Send))
}
