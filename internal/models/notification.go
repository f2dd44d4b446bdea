package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType enumerates the lifecycle events users are notified about.
type NotificationType string

const (
	NotificationNewParticipant    NotificationType = "new_participant"
	NotificationParticipantCancel NotificationType = "participant_cancel"
	NotificationDeadlineSoon      NotificationType = "deadline_soon"
	NotificationPostCompleted     NotificationType = "post_completed"
	NotificationPostCancelled     NotificationType = "post_cancelled"
	NotificationFavoriteDeadline  NotificationType = "favorite_deadline"
	NotificationFavoriteCompleted NotificationType = "favorite_completed"
)

// Notification is a per-user outbox entry. PostID is a soft reference that survives listing deletion.
type Notification struct {
	ID        string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string            `gorm:"type:varchar(36);index:idx_notifications_user_read,priority:1;not null" json:"userId"`
	Type      NotificationType  `gorm:"size:32;not null" json:"type"`
	Title     string            `gorm:"size:200;not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	PostID    *string           `gorm:"type:varchar(36);index" json:"postId,omitempty"`
	IsRead    bool              `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"isRead"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
