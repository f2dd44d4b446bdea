package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/realtime"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Participant{},
		&models.Favorite{},
		&models.ChatRoom{},
		&models.Message{},
		&models.Notification{},
	))
	return db
}

// fixture wires the real repositories and services over an in-memory store.
type fixture struct {
	db            *gorm.DB
	validate      *validator.Validate
	userRepo      repository.UserRepository
	listingRepo   repository.ListingRepository
	participants  repository.ParticipantRepository
	favoriteRepo  repository.FavoriteRepository
	chatRepo      repository.ChatRepository
	notifications NotificationService
	dispatcher    *EventDispatcher
	listings      ListingService
	favorites     FavoriteService
	users         UserService
	hub           *realtime.Hub
	chat          ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	log := testLogger()

	f := &fixture{
		db:           db,
		validate:     validate,
		userRepo:     repository.NewUserRepository(db),
		listingRepo:  repository.NewListingRepository(db),
		participants: repository.NewParticipantRepository(db),
		favoriteRepo: repository.NewFavoriteRepository(db),
		chatRepo:     repository.NewChatRepository(db),
		hub:          realtime.NewHub(log),
	}

	f.notifications = NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, log)
	f.dispatcher = NewEventDispatcher(log, 1,
		NewTrustScoreHandler(NewTrustService(f.userRepo, log), f.participants),
		NewNotificationHandler(f.notifications, f.participants, f.favoriteRepo),
	)
	f.listings = NewListingService(f.listingRepo, f.participants, f.favoriteRepo, f.userRepo, f.dispatcher, validate, log)
	f.favorites = NewFavoriteService(f.favoriteRepo, f.listingRepo, f.userRepo, validate, log)
	f.users = NewUserService(f.userRepo, validate, log)
	f.chat = NewChatService(f.chatRepo, f.listingRepo, f.userRepo, f.hub, nil, "", nil, validate, log)
	return f
}

func (f *fixture) user(t *testing.T, nickname string) dto.UserResponse {
	t.Helper()
	user, err := f.users.Register(context.Background(), dto.UserCreateRequest{
		Email:     nickname + "@campus.test",
		Nickname:  nickname,
		StudentID: "S-" + nickname,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) listing(t *testing.T, authorID string, minParticipants int) dto.ListingResponse {
	t.Helper()
	listing, err := f.listings.Create(context.Background(), dto.ListingCreateRequest{
		AuthorID:        authorID,
		Title:           "Shared rice sack",
		Content:         "20kg sack, pickup at dorm B",
		Price:           8,
		MinParticipants: minParticipants,
		Deadline:        time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	return listing
}

func (f *fixture) trustScore(t *testing.T, userID string) int {
	t.Helper()
	user, err := f.userRepo.FindByID(context.Background(), userID)
	require.NoError(t, err)
	return user.TrustScore
}

func (f *fixture) notificationsFor(t *testing.T, userID string, kind models.NotificationType) []models.Notification {
	t.Helper()
	var items []models.Notification
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", userID, kind).Find(&items).Error)
	return items
}

func (f *fixture) countNotifications(t *testing.T, kind models.NotificationType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Where("type = ?", kind).Count(&count).Error)
	return count
}
