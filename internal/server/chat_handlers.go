package server

import (
	"foodbridge/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FindOrCreateChat handles POST /api/chats. Body: {food_listing_id, user_id?}.
// Returns the existing chat for the (listing, donor, receiver) triple or
// creates it.
func (s *Server) FindOrCreateChat(c *fiber.Ctx) error {
	var req struct {
		FoodListingID uint `json:"food_listing_id"`
		UserID        uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.FoodListingID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("food_listing_id is required"))
	}

	chat, err := s.chatService.FindOrCreate(c.Context(), currentUserID(c), req.FoodListingID, req.UserID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

// GetChats handles GET /api/chats
func (s *Server) GetChats(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	chats, err := s.chatService.ListForUser(c.Context(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"chats": chats,
		"count": len(chats),
	})
}

// GetChat handles GET /api/chats/:id
func (s *Server) GetChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	chat, err := s.chatService.GetByID(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(chat)
}

// GetMessages handles GET /api/chats/:id/messages
func (s *Server) GetMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c, 50)
	messages, err := s.chatService.ListMessages(c.Context(), currentUserID(c), id, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// SendMessage handles POST /api/chats/:id/messages. The persisted message is
// fanned out to the chat room and offline-style notifications go to
// participants not currently viewing it.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content      string             `json:"content"`
		Type         models.MessageType `json:"type"`
		MediaURL     string             `json:"media_url"`
		MediaCaption string             `json:"media_caption"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	senderID := currentUserID(c)
	msg, err := s.chatService.SendMessage(c.Context(), senderID, id, req.Content, req.Type, req.MediaURL, req.MediaCaption)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.fanOutMessage(c.Context(), msg)
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkChatRead handles PUT /api/chats/:id/read
func (s *Server) MarkChatRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.chatService.MarkRead(c.Context(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Chat marked as read"})
}
