package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// UserRepository persists marketplace users and their trust score.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	AdjustTrustScore(ctx context.Context, id string, delta int) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translateError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return models.User{}, translateError(err)
	}
	return user, nil
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AdjustTrustScore applies delta with a single UPDATE so concurrent adjustments never lose writes.
func (r *userRepository) AdjustTrustScore(ctx context.Context, id string, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("trust_score", gorm.Expr("trust_score + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
