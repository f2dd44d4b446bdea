package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// ParticipantRepository is the participation ledger between users and listings.
type ParticipantRepository interface {
	Join(ctx context.Context, participant *models.Participant) (int, error)
	Leave(ctx context.Context, listingID, userID string) (int, error)
	Exists(ctx context.Context, listingID, userID string) (bool, error)
	ListByListing(ctx context.Context, listingID string) ([]models.Participant, error)
	ListUserIDs(ctx context.Context, listingID string) ([]string, error)
	ListListingsByUser(ctx context.Context, userID string) ([]models.Listing, error)
}

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository constructs a GORM-backed participation ledger.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// Join inserts the participant and rewrites the listing's current quantity from a fresh count in the same
// transaction. A second row for the same pair fails on the unique index with ErrDuplicate.
func (r *participantRepository) Join(ctx context.Context, participant *models.Participant) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(participant).Error; err != nil {
			return err
		}
		return recount(tx, participant.ListingID, &count)
	})
	if err != nil {
		return 0, translateError(err)
	}
	return int(count), nil
}

// Leave deletes the participant row and rewrites the current quantity in the same transaction.
func (r *participantRepository) Leave(ctx context.Context, listingID, userID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("listing_id = ? AND user_id = ?", listingID, userID).Delete(&models.Participant{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return recount(tx, listingID, &count)
	})
	if err != nil {
		return 0, translateError(err)
	}
	return int(count), nil
}

func recount(tx *gorm.DB, listingID string, count *int64) error {
	if err := tx.Model(&models.Participant{}).Where("listing_id = ?", listingID).Count(count).Error; err != nil {
		return err
	}
	return tx.Model(&models.Listing{}).
		Where("id = ?", listingID).
		UpdateColumn("current_quantity", *count).Error
}

func (r *participantRepository) Exists(ctx context.Context, listingID, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("listing_id = ? AND user_id = ?", listingID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *participantRepository) ListByListing(ctx context.Context, listingID string) ([]models.Participant, error) {
	var participants []models.Participant
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepository) ListUserIDs(ctx context.Context, listingID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *participantRepository) ListListingsByUser(ctx context.Context, userID string) ([]models.Listing, error) {
	var listings []models.Listing
	if err := r.db.WithContext(ctx).
		Joins("JOIN participants ON participants.listing_id = listings.id").
		Where("participants.user_id = ?", userID).
		Order("participants.created_at DESC").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}
