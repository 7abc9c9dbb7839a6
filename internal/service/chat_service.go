package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"foodbridge/internal/models"
	"foodbridge/internal/observability"
	"foodbridge/internal/repository"
)

// ChatService manages donor/receiver messaging sessions.
type ChatService struct {
	chats    repository.ChatRepository
	listings repository.ListingRepository
	users    repository.UserRepository

	// Per-chat locks serialize message appends so the unread counters and
	// last-message pointers never interleave between concurrent senders.
	// Striped by chat ID to keep the lock table a fixed size; a stripe
	// collision only over-serializes two unrelated chats.
	chatLocks [64]sync.Mutex
}

// NewChatService returns a new ChatService.
func NewChatService(
	chats repository.ChatRepository,
	listings repository.ListingRepository,
	users repository.UserRepository,
) *ChatService {
	return &ChatService{
		chats:    chats,
		listings: listings,
		users:    users,
	}
}

func (s *ChatService) lockFor(chatID uint) *sync.Mutex {
	return &s.chatLocks[chatID%uint(len(s.chatLocks))]
}

// FindOrCreate returns the chat for (listing, donor, receiver), creating it
// on first contact. The unique index on the triple makes concurrent creates
// converge on a single chat. otherUserID names the counterpart when the
// caller is the donor; receivers may pass zero.
func (s *ChatService) FindOrCreate(ctx context.Context, userID, listingID, otherUserID uint) (*models.Chat, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	donorID := listing.DonorID
	var receiverID uint
	if userID == donorID {
		if otherUserID == 0 || otherUserID == donorID {
			return nil, models.NewValidationError("Donor must name the receiver to chat with")
		}
		receiverID = otherUserID
	} else {
		if otherUserID != 0 && otherUserID != donorID {
			return nil, models.NewValidationError("Chats about a listing are always with its donor")
		}
		receiverID = userID
	}

	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	if chat, err := s.chats.FindByTriple(ctx, listingID, donorID, receiverID); err != nil {
		return nil, err
	} else if chat != nil {
		return chat, nil
	}

	chat := &models.Chat{
		FoodListingID: listingID,
		DonorID:       donorID,
		ReceiverID:    receiverID,
		IsActive:      true,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		// Lost a create race on the unique triple; the winner's chat serves.
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeConflict {
			return s.chats.FindByTriple(ctx, listingID, donorID, receiverID)
		}
		return nil, err
	}
	return s.chats.GetByID(ctx, chat.ID)
}

// GetByID returns the chat if the user participates in it.
func (s *ChatService) GetByID(ctx context.Context, userID, chatID uint) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}
	return chat, nil
}

// ListForUser returns the user's chats ordered by recent activity, each with
// the caller's unread counter attached.
func (s *ChatService) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Chat, error) {
	return s.chats.ListForUser(ctx, userID, limit, offset)
}

// SendMessage validates and persists a message to the chat, returning the
// stored message with sender preloaded.
func (s *ChatService) SendMessage(ctx context.Context, senderID, chatID uint, content string, msgType models.MessageType, mediaURL, mediaCaption string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Message content cannot be empty")
	}
	if len([]rune(content)) > models.MaxMessageContentLen {
		return nil, models.NewValidationError("Message content exceeds maximum length")
	}
	if msgType == "" {
		msgType = models.MessageText
	}
	if !msgType.Valid() {
		return nil, models.NewValidationError("Unknown message type")
	}

	ok, err := s.chats.IsParticipant(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}

	msg := &models.Message{
		ChatID:       chatID,
		SenderID:     senderID,
		Content:      content,
		Type:         msgType,
		MediaURL:     mediaURL,
		MediaCaption: mediaCaption,
	}

	lock := s.lockFor(chatID)
	lock.Lock()
	err = s.chats.AppendMessage(ctx, msg)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	observability.MessageThroughput.WithLabelValues(string(msgType)).Inc()

	sender, err := s.users.GetByID(ctx, senderID)
	if err == nil {
		msg.Sender = sender
	}
	return msg, nil
}

// ListMessages returns a page of the chat's messages, oldest first, for a
// participant.
func (s *ChatService) ListMessages(ctx context.Context, userID, chatID uint, limit, offset int) ([]models.Message, error) {
	ok, err := s.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}
	return s.chats.ListMessages(ctx, chatID, limit, offset)
}

// MarkRead zeroes the caller's unread counter for the chat. Safe to call
// repeatedly.
func (s *ChatService) MarkRead(ctx context.Context, userID, chatID uint) error {
	ok, err := s.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("You are not a participant in this chat")
	}

	lock := s.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()
	return s.chats.MarkRead(ctx, chatID, userID)
}

// IsParticipant reports whether the user belongs to the chat.
func (s *ChatService) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	return s.chats.IsParticipant(ctx, chatID, userID)
}

// UnreadCount returns the user's unread counter for the chat.
func (s *ChatService) UnreadCount(ctx context.Context, userID, chatID uint) (int, error) {
	return s.chats.UnreadCount(ctx, chatID, userID)
}
