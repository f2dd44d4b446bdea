package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// FavoriteRepository persists listing bookmarks.
type FavoriteRepository interface {
	Add(ctx context.Context, favorite *models.Favorite) error
	Remove(ctx context.Context, userID, listingID string) error
	Exists(ctx context.Context, userID, listingID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Favorite, int64, error)
	ListUserIDs(ctx context.Context, listingID string) ([]string, error)
	CountByListings(ctx context.Context, listingIDs []string) (map[string]int64, error)
	FavoritedListingIDs(ctx context.Context, userID string, listingIDs []string) (map[string]bool, error)
}

type favoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository constructs a GORM-backed favorite repository.
func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) Add(ctx context.Context, favorite *models.Favorite) error {
	return translateError(r.db.WithContext(ctx).Create(favorite).Error)
}

func (r *favoriteRepository) Remove(ctx context.Context, userID, listingID string) error {
	result := r.db.WithContext(ctx).Where("user_id = ? AND listing_id = ?", userID, listingID).Delete(&models.Favorite{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *favoriteRepository) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *favoriteRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Favorite, int64, error) {
	limit, offset = normalizePage(limit, offset, 20)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var favorites []models.Favorite
	if err := r.db.WithContext(ctx).
		Preload("Listing").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&favorites).Error; err != nil {
		return nil, 0, err
	}

	return favorites, total, nil
}

func (r *favoriteRepository) ListUserIDs(ctx context.Context, listingID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("listing_id = ?", listingID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *favoriteRepository) CountByListings(ctx context.Context, listingIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(listingIDs))
	if len(listingIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ListingID string
		Total     int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Select("listing_id, COUNT(*) AS total").
		Where("listing_id IN ?", listingIDs).
		Group("listing_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ListingID] = row.Total
	}
	return counts, nil
}

func (r *favoriteRepository) FavoritedListingIDs(ctx context.Context, userID string, listingIDs []string) (map[string]bool, error) {
	favorited := make(map[string]bool, len(listingIDs))
	if userID == "" || len(listingIDs) == 0 {
		return favorited, nil
	}

	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ? AND listing_id IN ?", userID, listingIDs).
		Pluck("listing_id", &ids).Error; err != nil {
		return nil, err
	}

	for _, id := range ids {
		favorited[id] = true
	}
	return favorited, nil
}
