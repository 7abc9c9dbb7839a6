package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageType is the kind of content a chat message carries.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageLocation MessageType = "location"
	MessageFile     MessageType = "file"
)

// Valid reports whether the message type is one of the known values.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageLocation, MessageFile:
		return true
	}
	return false
}

// MaxMessageContentLen bounds message content length in characters.
const MaxMessageContentLen = 2000

// Chat is the messaging session between a donor and a receiver about one
// listing. The (listing, donor, receiver) triple is unique; FindOrCreate
// relies on that index.
type Chat struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	FoodListingID uint         `gorm:"not null;uniqueIndex:idx_chats_triple" json:"food_listing_id"`
	FoodListing   *FoodListing `gorm:"foreignKey:FoodListingID" json:"food_listing,omitempty"`
	DonorID       uint         `gorm:"not null;uniqueIndex:idx_chats_triple" json:"donor_id"`
	ReceiverID    uint         `gorm:"not null;uniqueIndex:idx_chats_triple" json:"receiver_id"`

	Participants []User    `gorm:"many2many:chat_participants;" json:"participants,omitempty"`
	Messages     []Message `gorm:"foreignKey:ChatID" json:"messages,omitempty"`

	LastMessageID *uint      `json:"last_message_id,omitempty"`
	LastMessage   *Message   `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`
	LastActivity  time.Time  `gorm:"index" json:"last_activity"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`

	// UnreadCount is computed for the requesting user at query time.
	UnreadCount int `gorm:"-" json:"unread_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasParticipant reports whether the user is in the chat's participant set.
func (c *Chat) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Message represents a chat message. Immutable once created except for the
// read flag and timestamp.
type Message struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	ChatID   uint        `gorm:"not null;index" json:"chat_id"`
	SenderID uint        `gorm:"not null;index" json:"sender_id"`
	Sender   *User       `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content  string      `gorm:"type:text;not null" json:"content"`
	Type     MessageType `gorm:"type:varchar(20);default:'text'" json:"type"`

	MediaURL     string `json:"media_url,omitempty"`
	MediaCaption string `json:"media_caption,omitempty"`

	IsRead bool       `gorm:"default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ChatParticipant is the join table row tracking per-user read state.
type ChatParticipant struct {
	ChatID      uint      `gorm:"primaryKey" json:"chat_id"`
	UserID      uint      `gorm:"primaryKey" json:"user_id"`
	JoinedAt    time.Time `gorm:"autoCreateTime" json:"joined_at"`
	LastReadAt  time.Time `json:"last_read_at"`
	UnreadCount int       `gorm:"default:0" json:"unread_count"`
}
