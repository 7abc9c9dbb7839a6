package repository

import (
	"context"
	"errors"
	"time"

	"foodbridge/internal/models"

	"gorm.io/gorm"
)

// ChatRepository defines persistence operations for chats and messages.
type ChatRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Chat, error)

	// FindByTriple looks up the chat identified by (listing, donor, receiver).
	// Returns nil, nil when no such chat exists.
	FindByTriple(ctx context.Context, listingID, donorID, receiverID uint) (*models.Chat, error)

	Create(ctx context.Context, chat *models.Chat) error
	ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Chat, error)

	// AppendMessage persists a message and bumps the chat's last-message
	// pointers and every other participant's unread counter in one
	// transaction.
	AppendMessage(ctx context.Context, msg *models.Message) error

	ListMessages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, error)

	// MarkRead zeroes the user's unread counter and flags messages from the
	// other participant as read. Idempotent.
	MarkRead(ctx context.Context, chatID, userID uint) error

	GetParticipant(ctx context.Context, chatID, userID uint) (*models.ChatParticipant, error)
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	UnreadCount(ctx context.Context, chatID, userID uint) (int, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository returns a new ChatRepository implementation.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) GetByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("FoodListing").
		Preload("LastMessage").
		First(&chat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Chat", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &chat, nil
}

func (r *chatRepository) FindByTriple(ctx context.Context, listingID, donorID, receiverID uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("food_listing_id = ? AND donor_id = ? AND receiver_id = ?", listingID, donorID, receiverID).
		First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &chat, nil
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		participants := []models.ChatParticipant{
			{ChatID: chat.ID, UserID: chat.DonorID, LastReadAt: time.Now()},
			{ChatID: chat.ID, UserID: chat.ReceiverID, LastReadAt: time.Now()},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Chat already exists for this listing and participants")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Chat, error) {
	if limit <= 0 {
		limit = 20
	}
	var chats []models.Chat
	if err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants cp ON cp.chat_id = chats.id AND cp.user_id = ?", userID).
		Preload("Participants").
		Preload("FoodListing").
		Preload("LastMessage").
		Where("chats.is_active = ?", true).
		Order("chats.last_activity DESC").
		Limit(limit).
		Offset(offset).
		Find(&chats).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	// Attach per-user unread counters.
	for i := range chats {
		var p models.ChatParticipant
		if err := r.db.WithContext(ctx).
			Where("chat_id = ? AND user_id = ?", chats[i].ID, userID).
			First(&p).Error; err == nil {
			chats[i].UnreadCount = p.UnreadCount
		}
	}
	return chats, nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&models.Chat{}).
			Where("id = ?", msg.ChatID).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"last_activity":   now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatParticipant{}).
			Where("chat_id = ? AND user_id <> ?", msg.ChatID, msg.SenderID).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	var msgs []models.Message
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	// Oldest first for clients.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *chatRepository) MarkRead(ctx context.Context, chatID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&models.ChatParticipant{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Updates(map[string]interface{}{
				"unread_count": 0,
				"last_read_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Message{}).
			Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, userID, false).
			Updates(map[string]interface{}{
				"is_read": true,
				"read_at": now,
			}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) GetParticipant(ctx context.Context, chatID, userID uint) (*models.ChatParticipant, error) {
	var p models.ChatParticipant
	if err := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("ChatParticipant", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *chatRepository) UnreadCount(ctx context.Context, chatID, userID uint) (int, error) {
	p, err := r.GetParticipant(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	return p.UnreadCount, nil
}
