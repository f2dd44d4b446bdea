package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

// ChatRepository persists chat rooms and their message logs.
type ChatRepository interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	FindRoomByID(ctx context.Context, id string) (models.ChatRoom, error)
	FindRoomByPostID(ctx context.Context, postID string) (models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string, limit, offset int) ([]models.ChatRoom, int64, error)
	SaveMessage(ctx context.Context, message *models.Message) error
	FindMessage(ctx context.Context, id string) (models.Message, error)
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	LatestMessage(ctx context.Context, roomID string) (models.Message, error)
	MarkMessageRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, roomID, userID string) (int64, error)
	CountUnread(ctx context.Context, roomID, userID string) (int64, error)
	DeleteMessage(ctx context.Context, id string) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	return translateError(r.db.WithContext(ctx).Create(room).Error)
}

func (r *chatRepository) FindRoomByID(ctx context.Context, id string) (models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return models.ChatRoom{}, translateError(err)
	}
	return room, nil
}

func (r *chatRepository) FindRoomByPostID(ctx context.Context, postID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).First(&room, "post_id = ?", postID).Error; err != nil {
		return models.ChatRoom{}, translateError(err)
	}
	return room, nil
}

// ListRoomsForUser returns rooms of listings the user authored or joined.
func (r *chatRepository) ListRoomsForUser(ctx context.Context, userID string, limit, offset int) ([]models.ChatRoom, int64, error) {
	limit, offset = normalizePage(limit, offset, 20)

	joined := r.db.Model(&models.Participant{}).Select("listing_id").Where("user_id = ?", userID)
	authored := r.db.Model(&models.Listing{}).Select("id").Where("author_id = ?", userID)

	query := r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("post_id IN (?) OR post_id IN (?)", joined, authored)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rooms []models.ChatRoom
	if err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&rooms).Error; err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

func (r *chatRepository) SaveMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatRoom{}).
			Where("id = ?", message.ChatRoomID).
			UpdateColumn("updated_at", message.CreatedAt).Error
	})
}

func (r *chatRepository) FindMessage(ctx context.Context, id string) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&message, "id = ?", id).Error; err != nil {
		return models.Message{}, translateError(err)
	}
	return message, nil
}

func (r *chatRepository) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	limit, offset = normalizePage(limit, offset, 50)

	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *chatRepository) LatestMessage(ctx context.Context, roomID string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Where("chat_room_id = ?", roomID).Order("created_at DESC, id DESC").First(&message).Error
	if err != nil {
		return models.Message{}, translateError(err)
	}
	return message, nil
}

func (r *chatRepository) MarkMessageRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *chatRepository) MarkAllRead(ctx context.Context, roomID, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("chat_room_id = ? AND sender_id <> ? AND is_read = ?", roomID, userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *chatRepository) CountUnread(ctx context.Context, roomID, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("chat_room_id = ? AND sender_id <> ? AND is_read = ?", roomID, userID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *chatRepository) DeleteMessage(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
