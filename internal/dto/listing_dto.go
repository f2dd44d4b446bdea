package dto

import (
	"time"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// ListingCreateRequest is the payload to publish a new group-buy listing.
type ListingCreateRequest struct {
	AuthorID        string   `json:"authorId" validate:"required,uuid"`
	Title           string   `json:"title" validate:"required,min=1,max=200"`
	Content         string   `json:"content" validate:"required,min=1"`
	Price           float64  `json:"price" validate:"required,gt=0"`
	MinParticipants int      `json:"minParticipants" validate:"required,gt=0"`
	Deadline        string   `json:"deadline" validate:"required"`
	PickupLocation  string   `json:"pickupLocation" validate:"max=200"`
	Images          []string `json:"images" validate:"omitempty,dive,min=1"`
	Category        *string  `json:"category" validate:"omitempty,oneof=food daily beauty electronics school freemarket"`
}

// ListingUpdateRequest patches mutable listing fields. Status and quantity are owned by the lifecycle endpoints.
type ListingUpdateRequest struct {
	Title           *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Content         *string   `json:"content" validate:"omitempty,min=1"`
	Price           *float64  `json:"price" validate:"omitempty,gt=0"`
	MinParticipants *int      `json:"minParticipants" validate:"omitempty,gt=0"`
	Deadline        *string   `json:"deadline"`
	PickupLocation  *string   `json:"pickupLocation" validate:"omitempty,max=200"`
	Images          *[]string `json:"images" validate:"omitempty,dive,min=1"`
	Category        *string   `json:"category" validate:"omitempty,oneof=food daily beauty electronics school freemarket"`
}

// ListingQuery carries list filters.
type ListingQuery struct {
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset   int    `query:"offset" validate:"omitempty,min=0"`
	Category string `query:"category" validate:"omitempty,oneof=food daily beauty electronics school freemarket"`
}

// JoinListingRequest is the participation payload.
type JoinListingRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// ListingStatusRequest moves a listing through its lifecycle.
type ListingStatusRequest struct {
	Status   string `json:"status" validate:"required,oneof=open closed in_progress completed cancelled"`
	AuthorID string `json:"authorId" validate:"omitempty,uuid"`
}

// ListingResponse is the serialized listing including viewer-relative fields.
type ListingResponse struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"authorId"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Price           float64   `json:"price"`
	MinParticipants int       `json:"minParticipants"`
	CurrentQuantity int       `json:"currentQuantity"`
	Status          string    `json:"status"`
	Deadline        time.Time `json:"deadline"`
	Category        *string   `json:"category"`
	PickupLocation  string    `json:"pickupLocation"`
	Images          []string  `json:"images"`
	FavoriteCount   int64     `json:"favoriteCount"`
	IsFavorite      bool      `json:"isFavorite"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ListingListResponse wraps a page of listings.
type ListingListResponse struct {
	Items  []ListingResponse `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ParticipantResponse describes a single participation.
type ParticipantResponse struct {
	ID        string       `json:"id"`
	ListingID string       `json:"listingId"`
	UserID    string       `json:"userId"`
	User      *UserSummary `json:"user,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// JoinListingResponse returns the created participation and the refreshed listing.
type JoinListingResponse struct {
	Participant ParticipantResponse `json:"participant"`
	Listing     ListingResponse     `json:"post"`
}

// LeaveListingResponse returns the refreshed listing after leaving.
type LeaveListingResponse struct {
	Listing ListingResponse `json:"post"`
}

// ParticipationCheckResponse answers whether a user joined a listing.
type ParticipationCheckResponse struct {
	IsParticipant bool `json:"isParticipant"`
}

// NewListingResponse converts a model into a DTO.
func NewListingResponse(model models.Listing) ListingResponse {
	var category *string
	if model.Category != nil {
		value := string(*model.Category)
		category = &value
	}

	images := []string(model.Images)
	if images == nil {
		images = []string{}
	}

	return ListingResponse{
		ID:              model.ID,
		AuthorID:        model.AuthorID,
		Title:           model.Title,
		Content:         model.Content,
		Price:           model.Price,
		MinParticipants: model.MinParticipants,
		CurrentQuantity: model.CurrentQuantity,
		Status:          string(model.Status),
		Deadline:        model.Deadline,
		Category:        category,
		PickupLocation:  model.PickupLocation,
		Images:          images,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewParticipantResponse converts a participation model to DTO.
func NewParticipantResponse(model models.Participant) ParticipantResponse {
	response := ParticipantResponse{
		ID:        model.ID,
		ListingID: model.ListingID,
		UserID:    model.UserID,
		CreatedAt: model.CreatedAt,
	}
	if model.User != nil {
		summary := NewUserSummary(*model.User)
		response.User = &summary
	}
	return response
}

// NewParticipantResponseSlice converts participations to DTOs.
func NewParticipantResponseSlice(items []models.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewParticipantResponse(item))
	}
	return out
}
