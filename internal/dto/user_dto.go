package dto

import (
	"time"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// UserCreateRequest registers a marketplace user.
type UserCreateRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Nickname  string  `json:"nickname" validate:"required,min=1,max=64"`
	StudentID string  `json:"studentId" validate:"required,min=1,max=32"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url,max=512"`
}

// UserResponse is the public profile including the trust score.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Nickname   string    `json:"nickname"`
	StudentID  string    `json:"studentId"`
	AvatarURL  *string   `json:"avatarUrl,omitempty"`
	TrustScore int       `json:"trustScore"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserSummary is the compact user shape embedded in other payloads.
type UserSummary struct {
	ID        string  `json:"id"`
	Nickname  string  `json:"nickname"`
	StudentID string  `json:"studentId,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// NewUserResponse converts a model to DTO.
func NewUserResponse(model models.User) UserResponse {
	return UserResponse{
		ID:         model.ID,
		Email:      model.Email,
		Nickname:   model.Nickname,
		StudentID:  model.StudentID,
		AvatarURL:  model.AvatarURL,
		TrustScore: model.TrustScore,
		CreatedAt:  model.CreatedAt,
	}
}

// NewUserSummary converts a model to the compact DTO.
func NewUserSummary(model models.User) UserSummary {
	return UserSummary{
		ID:        model.ID,
		Nickname:  model.Nickname,
		StudentID: model.StudentID,
		AvatarURL: model.AvatarURL,
	}
}
