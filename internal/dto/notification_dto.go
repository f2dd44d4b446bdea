package dto

import (
	"time"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// NotificationCreateRequest describes a notification to store for one recipient.
type NotificationCreateRequest struct {
	UserID   string                 `json:"userId" validate:"required,max=64"`
	Type     string                 `json:"type" validate:"required,oneof=new_participant participant_cancel deadline_soon post_completed post_cancelled favorite_deadline favorite_completed"`
	Title    string                 `json:"title" validate:"required,min=1,max=200"`
	Message  string                 `json:"message" validate:"required,min=1,max=2000"`
	PostID   *string                `json:"postId,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationQuery filters the notification list.
type NotificationQuery struct {
	Limit      int  `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset     int  `query:"offset" validate:"omitempty,min=0"`
	UnreadOnly bool `query:"unreadOnly"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	PostID    *string                `json:"postId,omitempty"`
	IsRead    bool                   `json:"isRead"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// NotificationListResponse is a page of notifications with counters.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int64                  `json:"unreadCount"`
	Total         int64                  `json:"total"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      string(model.Type),
		Title:     model.Title,
		Message:   model.Message,
		PostID:    model.PostID,
		IsRead:    model.IsRead,
		Metadata:  model.Metadata,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
