package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

// ErrUserConflict indicates the email or student id is already registered.
var ErrUserConflict = errors.New("email or student id already registered")

// UserService is the user directory.
type UserService interface {
	Register(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error)
	Get(ctx context.Context, id string) (dto.UserResponse, error)
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the user directory.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Register(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	payload.Nickname = strings.TrimSpace(payload.Nickname)
	payload.StudentID = strings.TrimSpace(payload.StudentID)

	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Email:      payload.Email,
		Nickname:   payload.Nickname,
		StudentID:  payload.StudentID,
		AvatarURL:  payload.AvatarURL,
		TrustScore: models.DefaultTrustScore,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.UserResponse{}, fmt.Errorf("%w: %w", ErrValidation, ErrUserConflict)
		}
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return dto.NewUserResponse(user), nil
}

func (s *userService) Get(ctx context.Context, id string) (dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, notFound("user", err)
	}
	return dto.NewUserResponse(user), nil
}
