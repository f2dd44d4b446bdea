package dto

import (
	"time"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// ChatRoomCreateRequest asks for the room of a listing, creating it on first use.
type ChatRoomCreateRequest struct {
	PostID string `json:"postId" validate:"required,uuid"`
}

// ChatSendRequest is the payload to append a message to a room.
type ChatSendRequest struct {
	ChatRoomID  string `json:"chatRoomId" validate:"required,uuid"`
	SenderID    string `json:"senderId" validate:"required,uuid"`
	Content     string `json:"content" validate:"required,min=1"`
	MessageType string `json:"messageType" validate:"omitempty,oneof=text image file"`
}

// ChatRoomResponse is the serialized chat room.
type ChatRoomResponse struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatRoomSummary is a room entry in a user's inbox.
type ChatRoomSummary struct {
	ChatRoomResponse
	Post        ChatRoomPost        `json:"post"`
	LastMessage *ChatMessagePreview `json:"lastMessage"`
	UnreadCount int64               `json:"unreadCount"`
}

// ChatRoomPost is the listing digest shown next to a room.
type ChatRoomPost struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	AuthorID string   `json:"authorId"`
	Status   string   `json:"status"`
	Images   []string `json:"images"`
}

// ChatMessagePreview is the last message of a room.
type ChatMessagePreview struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRoomListResponse is a page of a user's rooms.
type ChatRoomListResponse struct {
	ChatRooms []ChatRoomSummary `json:"chatRooms"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// ChatMessageResponse is the serialized representation of a chat message.
type ChatMessageResponse struct {
	ID          string       `json:"id"`
	ChatRoomID  string       `json:"chatRoomId"`
	SenderID    string       `json:"senderId"`
	Sender      *UserSummary `json:"sender,omitempty"`
	Content     string       `json:"content"`
	MessageType string       `json:"messageType"`
	IsRead      bool         `json:"isRead"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// UnreadCountResponse carries an unread counter.
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

// UpdatedCountResponse carries the number of rows a bulk update touched.
type UpdatedCountResponse struct {
	UpdatedCount int64 `json:"updatedCount"`
}

// NewChatRoomResponse converts a model into a DTO.
func NewChatRoomResponse(room models.ChatRoom) ChatRoomResponse {
	return ChatRoomResponse{
		ID:        room.ID,
		PostID:    room.PostID,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.Message) ChatMessageResponse {
	response := ChatMessageResponse{
		ID:          message.ID,
		ChatRoomID:  message.ChatRoomID,
		SenderID:    message.SenderID,
		Content:     message.Content,
		MessageType: string(message.MessageType),
		IsRead:      message.IsRead,
		CreatedAt:   message.CreatedAt,
	}
	if message.Sender != nil {
		sender := NewUserSummary(*message.Sender)
		response.Sender = &sender
	}
	return response
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.Message) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}
