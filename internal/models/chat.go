package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType describes the payload kind carried by a chat message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// ChatRoom is the single conversation attached to a listing.
type ChatRoom struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PostID    string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Messages []Message `gorm:"foreignKey:ChatRoomID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID primary key.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Message is an entry in a chat room's log. IsRead is a single flag shared by all recipients.
type Message struct {
	ID          string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChatRoomID  string      `gorm:"type:varchar(36);index:idx_messages_room_created,priority:1;not null" json:"chatRoomId"`
	SenderID    string      `gorm:"type:varchar(36);index;not null" json:"senderId"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"size:16;not null;default:text" json:"messageType"`
	IsRead      bool        `gorm:"not null;default:false" json:"isRead"`
	CreatedAt   time.Time   `gorm:"index:idx_messages_room_created,priority:2" json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// BeforeCreate assigns a UUID primary key.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
	return nil
}
