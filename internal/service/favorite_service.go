package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

// FavoriteService manages listing bookmarks.
type FavoriteService interface {
	Add(ctx context.Context, listingID, userID string) (dto.FavoriteStatusResponse, error)
	Remove(ctx context.Context, listingID, userID string) (dto.FavoriteStatusResponse, error)
	List(ctx context.Context, userID string, query dto.FavoriteQuery) (dto.ListingListResponse, error)
	ListFavoriteUserIDs(ctx context.Context, listingID string) ([]string, error)
}

type favoriteService struct {
	favorites repository.FavoriteRepository
	listings  repository.ListingRepository
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewFavoriteService constructs the favorites collaborator.
func NewFavoriteService(favorites repository.FavoriteRepository, listings repository.ListingRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) FavoriteService {
	return &favoriteService{
		favorites: favorites,
		listings:  listings,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "favorite_service").Logger(),
	}
}

// Add is idempotent: favoriting twice leaves a single row.
func (s *favoriteService) Add(ctx context.Context, listingID, userID string) (dto.FavoriteStatusResponse, error) {
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		return dto.FavoriteStatusResponse{}, notFound("listing", err)
	}
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return dto.FavoriteStatusResponse{}, err
	}
	if !exists {
		return dto.FavoriteStatusResponse{}, fmt.Errorf("user: %w", ErrNotFound)
	}

	err = s.favorites.Add(ctx, &models.Favorite{UserID: userID, ListingID: listingID})
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return dto.FavoriteStatusResponse{}, err
	}

	return s.status(ctx, listingID, true)
}

func (s *favoriteService) Remove(ctx context.Context, listingID, userID string) (dto.FavoriteStatusResponse, error) {
	if err := s.favorites.Remove(ctx, userID, listingID); err != nil {
		return dto.FavoriteStatusResponse{}, notFound("favorite", err)
	}
	return s.status(ctx, listingID, false)
}

func (s *favoriteService) status(ctx context.Context, listingID string, favorite bool) (dto.FavoriteStatusResponse, error) {
	counts, err := s.favorites.CountByListings(ctx, []string{listingID})
	if err != nil {
		return dto.FavoriteStatusResponse{}, err
	}
	return dto.FavoriteStatusResponse{
		ListingID:     listingID,
		IsFavorite:    favorite,
		FavoriteCount: counts[listingID],
	}, nil
}

func (s *favoriteService) List(ctx context.Context, userID string, query dto.FavoriteQuery) (dto.ListingListResponse, error) {
	if userID == "" {
		return dto.ListingListResponse{}, ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return dto.ListingListResponse{}, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}

	favorites, total, err := s.favorites.ListByUser(ctx, userID, limit, query.Offset)
	if err != nil {
		return dto.ListingListResponse{}, err
	}

	ids := make([]string, 0, len(favorites))
	for _, favorite := range favorites {
		ids = append(ids, favorite.ListingID)
	}
	counts, err := s.favorites.CountByListings(ctx, ids)
	if err != nil {
		return dto.ListingListResponse{}, err
	}

	items := make([]dto.ListingResponse, 0, len(favorites))
	for _, favorite := range favorites {
		if favorite.Listing == nil {
			continue
		}
		item := dto.NewListingResponse(*favorite.Listing)
		item.FavoriteCount = counts[favorite.ListingID]
		item.IsFavorite = true
		items = append(items, item)
	}

	return dto.ListingListResponse{Items: items, Total: total, Limit: limit, Offset: query.Offset}, nil
}

func (s *favoriteService) ListFavoriteUserIDs(ctx context.Context, listingID string) ([]string, error) {
	return s.favorites.ListUserIDs(ctx, listingID)
}
