package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTrustScore is assigned to every newly registered user.
const DefaultTrustScore = 50

// User is a marketplace member. The trust score is adjusted by listing lifecycle events.
type User struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email      string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Nickname   string    `gorm:"size:64;not null" json:"nickname"`
	StudentID  string    `gorm:"size:32;uniqueIndex;not null" json:"studentId"`
	AvatarURL  *string   `gorm:"size:512" json:"avatarUrl,omitempty"`
	TrustScore int       `gorm:"not null;default:50" json:"trustScore"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key and the starting trust score.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.TrustScore == 0 {
		u.TrustScore = DefaultTrustScore
	}
	return nil
}
