package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// ListingFilter narrows listing queries.
type ListingFilter struct {
	Category *models.ListingCategory
	AuthorID string
	Limit    int
	Offset   int
}

// ListingRepository persists group-buy listings.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id string) (models.Listing, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Listing, error)
	List(ctx context.Context, filter ListingFilter) ([]models.Listing, int64, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (models.Listing, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ListingStatus) error
	Delete(ctx context.Context, id string) error
	ListDeadlineCandidates(ctx context.Context, now, until time.Time) ([]models.Listing, error)
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository constructs a GORM-backed listing repository.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	return translateError(r.db.WithContext(ctx).Create(listing).Error)
}

func (r *listingRepository) FindByID(ctx context.Context, id string) (models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return models.Listing{}, translateError(err)
	}
	return listing, nil
}

func (r *listingRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Listing, error) {
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}
	var listings []models.Listing
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) List(ctx context.Context, filter ListingFilter) ([]models.Listing, int64, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset, 20)

	query := r.db.WithContext(ctx).Model(&models.Listing{})
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []models.Listing
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&listings).Error; err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

func (r *listingRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&listing, "id = ?", id).Error; err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&listing).Updates(fields).Error; err != nil {
			return err
		}
		return tx.First(&listing, "id = ?", id).Error
	})
	if err != nil {
		return models.Listing{}, translateError(err)
	}
	return listing, nil
}

// UpdateStatus moves a listing from one status to another only if it is still in the expected state.
func (r *listingRepository) UpdateStatus(ctx context.Context, id string, from, to models.ListingStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Delete removes the listing and everything hanging off it. Dependents are removed explicitly as well as via
// ON DELETE CASCADE so stores without enforced foreign keys end up in the same state.
func (r *listingRepository) Delete(ctx context.Context, id string) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.Select("id").First(&listing, "id = ?", id).Error; err != nil {
			return err
		}

		rooms := tx.Model(&models.ChatRoom{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("chat_room_id IN (?)", rooms).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.ChatRoom{}).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Listing{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

func (r *listingRepository) ListDeadlineCandidates(ctx context.Context, now, until time.Time) ([]models.Listing, error) {
	var listings []models.Listing
	if err := r.db.WithContext(ctx).
		Where("status = ? AND deadline > ? AND deadline <= ?", models.ListingStatusOpen, now, until).
		Order("deadline ASC").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}
