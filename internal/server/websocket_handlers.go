package server

import (
	"log"

	"foodbridge/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketChatHandler upgrades the connection and binds it to the chat hub.
// AuthRequired has already redeemed the ticket (or validated the JWT), so the
// userID local is trustworthy here.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.chatHub.Register(userID, conn)
		if err != nil {
			log.Printf("ChatHub: registration refused for user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"message-error","payload":{"error":"connection limit reached"}}`))
			_ = conn.Close()
			return
		}

		observability.WebSocketConnectionsTotal.Inc()
		defer observability.WebSocketConnectionsTotal.Dec()

		client.IncomingHandler = s.handleChatEvent

		go client.WritePump()
		// ReadPump blocks until the connection drops, then unregisters the
		// client from all rooms.
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
