package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ListingStatus captures the lifecycle state of a group-buy listing.
type ListingStatus string

const (
	ListingStatusOpen       ListingStatus = "open"
	ListingStatusClosed     ListingStatus = "closed"
	ListingStatusInProgress ListingStatus = "in_progress"
	ListingStatusCompleted  ListingStatus = "completed"
	ListingStatusCancelled  ListingStatus = "cancelled"
)

// ListingCategory groups listings for browsing.
type ListingCategory string

const (
	CategoryFood        ListingCategory = "food"
	CategoryDaily       ListingCategory = "daily"
	CategoryBeauty      ListingCategory = "beauty"
	CategoryElectronics ListingCategory = "electronics"
	CategorySchool      ListingCategory = "school"
	CategoryFreeMarket  ListingCategory = "freemarket"
)

// Listing is a group-purchase post. CurrentQuantity always mirrors the number of participant rows.
type Listing struct {
	ID              string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	AuthorID        string                      `gorm:"type:varchar(36);index;not null" json:"authorId"`
	Title           string                      `gorm:"size:200;not null" json:"title"`
	Content         string                      `gorm:"type:text;not null" json:"content"`
	Price           float64                     `gorm:"type:decimal(10,2);not null" json:"price"`
	MinParticipants int                         `gorm:"not null;default:1" json:"minParticipants"`
	CurrentQuantity int                         `gorm:"not null;default:0" json:"currentQuantity"`
	Status          ListingStatus               `gorm:"size:20;index;not null;default:open" json:"status"`
	Deadline        time.Time                   `gorm:"index;not null" json:"deadline"`
	Category        *ListingCategory            `gorm:"size:20;index" json:"category,omitempty"`
	PickupLocation  string                      `gorm:"size:200" json:"pickupLocation"`
	Images          datatypes.JSONSlice[string] `json:"images"`
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`

	Participants []Participant `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
	Favorites    []Favorite    `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
	ChatRoom     *ChatRoom     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID primary key and the open status.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = ListingStatusOpen
	}
	if l.MinParticipants <= 0 {
		l.MinParticipants = 1
	}
	return nil
}

// Participant records one user's active participation in one listing.
type Participant struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ListingID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_participants_listing_user" json:"listingId"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_participants_listing_user;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// BeforeCreate assigns a UUID primary key.
func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Favorite bookmarks a listing for a user.
type Favorite struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorites_user_listing" json:"userId"`
	ListingID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorites_user_listing;index" json:"listingId"`
	CreatedAt time.Time `json:"createdAt"`

	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
}

// BeforeCreate assigns a UUID primary key.
func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
