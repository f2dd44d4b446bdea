package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/observability"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

var statusTransitions = map[models.ListingStatus][]models.ListingStatus{
	models.ListingStatusOpen:       {models.ListingStatusClosed, models.ListingStatusCancelled},
	models.ListingStatusClosed:     {models.ListingStatusInProgress, models.ListingStatusCancelled},
	models.ListingStatusInProgress: {models.ListingStatusCompleted, models.ListingStatusCancelled},
	models.ListingStatusCompleted:  nil,
	models.ListingStatusCancelled:  nil,
}

// AllowedTransitions lists the statuses reachable from the given one.
func AllowedTransitions(from models.ListingStatus) []models.ListingStatus {
	allowed := statusTransitions[from]
	out := make([]models.ListingStatus, len(allowed))
	copy(out, allowed)
	return out
}

func canTransition(from, to models.ListingStatus) bool {
	for _, status := range statusTransitions[from] {
		if status == to {
			return true
		}
	}
	return false
}

// ListingService orchestrates listing participation and lifecycle so participant counts, status,
// trust scores and notifications move together.
type ListingService interface {
	Create(ctx context.Context, payload dto.ListingCreateRequest) (dto.ListingResponse, error)
	Get(ctx context.Context, id, viewerID string) (dto.ListingResponse, error)
	List(ctx context.Context, query dto.ListingQuery, viewerID string) (dto.ListingListResponse, error)
	ListByAuthor(ctx context.Context, authorID string, query dto.ListingQuery, viewerID string) (dto.ListingListResponse, error)
	Update(ctx context.Context, id, requesterID string, payload dto.ListingUpdateRequest) (dto.ListingResponse, error)
	Join(ctx context.Context, listingID, userID string) (dto.JoinListingResponse, error)
	Leave(ctx context.Context, listingID, userID string) (dto.LeaveListingResponse, error)
	ChangeStatus(ctx context.Context, listingID string, status models.ListingStatus, requesterID string) (dto.ListingResponse, error)
	Delete(ctx context.Context, listingID, requesterID string) error
	ListParticipants(ctx context.Context, listingID string) ([]dto.ParticipantResponse, error)
	ListParticipated(ctx context.Context, userID string) ([]dto.ListingResponse, error)
	IsParticipant(ctx context.Context, listingID, userID string) (bool, error)
}

type listingService struct {
	listings     repository.ListingRepository
	participants repository.ParticipantRepository
	favorites    repository.FavoriteRepository
	users        repository.UserRepository
	events       *EventDispatcher
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewListingService wires the orchestrator. Secondary effects are delivered through events.
func NewListingService(
	listings repository.ListingRepository,
	participants repository.ParticipantRepository,
	favorites repository.FavoriteRepository,
	users repository.UserRepository,
	events *EventDispatcher,
	validate *validator.Validate,
	logger zerolog.Logger,
) ListingService {
	return &listingService{
		listings:     listings,
		participants: participants,
		favorites:    favorites,
		users:        users,
		events:       events,
		validator:    validate,
		sanitizer:    bluemonday.UGCPolicy(),
		logger:       logger.With().Str("component", "listing_service").Logger(),
		tracer:       observability.Tracer("service/listing"),
		now:          time.Now,
	}
}

func (s *listingService) Create(ctx context.Context, payload dto.ListingCreateRequest) (dto.ListingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ListingResponse{}, err
	}

	deadline, err := parseDeadline(payload.Deadline)
	if err != nil {
		return dto.ListingResponse{}, err
	}
	if !deadline.After(s.now()) {
		return dto.ListingResponse{}, fmt.Errorf("deadline must be in the future: %w", ErrValidation)
	}

	exists, err := s.users.Exists(ctx, payload.AuthorID)
	if err != nil {
		return dto.ListingResponse{}, err
	}
	if !exists {
		return dto.ListingResponse{}, fmt.Errorf("author: %w", ErrNotFound)
	}

	listing := models.Listing{
		AuthorID:        payload.AuthorID,
		Title:           s.clean(payload.Title),
		Content:         s.clean(payload.Content),
		Price:           payload.Price,
		MinParticipants: payload.MinParticipants,
		Status:          models.ListingStatusOpen,
		Deadline:        deadline,
		PickupLocation:  s.clean(payload.PickupLocation),
		Images:          datatypes.JSONSlice[string](payload.Images),
	}
	if payload.Category != nil {
		category := models.ListingCategory(*payload.Category)
		listing.Category = &category
	}
	if listing.Title == "" || listing.Content == "" {
		return dto.ListingResponse{}, fmt.Errorf("title and content must not be empty: %w", ErrValidation)
	}

	if err := s.listings.Create(ctx, &listing); err != nil {
		return dto.ListingResponse{}, err
	}

	s.logger.Info().Str("listing_id", listing.ID).Str("author_id", listing.AuthorID).Msg("listing created")
	return dto.NewListingResponse(listing), nil
}

func (s *listingService) Get(ctx context.Context, id, viewerID string) (dto.ListingResponse, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return dto.ListingResponse{}, notFound("listing", err)
	}

	responses, err := s.decorate(ctx, []models.Listing{listing}, viewerID)
	if err != nil {
		return dto.ListingResponse{}, err
	}
	return responses[0], nil
}

func (s *listingService) List(ctx context.Context, query dto.ListingQuery, viewerID string) (dto.ListingListResponse, error) {
	return s.list(ctx, query, "", viewerID)
}

func (s *listingService) ListByAuthor(ctx context.Context, authorID string, query dto.ListingQuery, viewerID string) (dto.ListingListResponse, error) {
	if strings.TrimSpace(authorID) == "" {
		return dto.ListingListResponse{}, fmt.Errorf("author id: %w", ErrValidation)
	}
	return s.list(ctx, query, authorID, viewerID)
}

func (s *listingService) list(ctx context.Context, query dto.ListingQuery, authorID, viewerID string) (dto.ListingListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.ListingListResponse{}, err
	}

	filter := repository.ListingFilter{
		AuthorID: authorID,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	if query.Category != "" {
		category := models.ListingCategory(query.Category)
		filter.Category = &category
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	listings, total, err := s.listings.List(ctx, filter)
	if err != nil {
		return dto.ListingListResponse{}, err
	}

	items, err := s.decorate(ctx, listings, viewerID)
	if err != nil {
		return dto.ListingListResponse{}, err
	}

	return dto.ListingListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// decorate adds favorite counts and the viewer's favorite flag.
func (s *listingService) decorate(ctx context.Context, listings []models.Listing, viewerID string) ([]dto.ListingResponse, error) {
	ids := make([]string, 0, len(listings))
	for _, listing := range listings {
		ids = append(ids, listing.ID)
	}

	counts, err := s.favorites.CountByListings(ctx, ids)
	if err != nil {
		return nil, err
	}

	favorited := map[string]bool{}
	if viewerID != "" {
		favorited, err = s.favorites.FavoritedListingIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
	}

	out := make([]dto.ListingResponse, 0, len(listings))
	for _, listing := range listings {
		response := dto.NewListingResponse(listing)
		response.FavoriteCount = counts[listing.ID]
		response.IsFavorite = favorited[listing.ID]
		out = append(out, response)
	}
	return out, nil
}

func (s *listingService) Update(ctx context.Context, id, requesterID string, payload dto.ListingUpdateRequest) (dto.ListingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ListingResponse{}, err
	}

	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return dto.ListingResponse{}, notFound("listing", err)
	}
	if requesterID == "" || listing.AuthorID != requesterID {
		return dto.ListingResponse{}, ErrForbidden
	}

	fields := map[string]interface{}{}
	if payload.Title != nil {
		fields["title"] = s.clean(*payload.Title)
	}
	if payload.Content != nil {
		fields["content"] = s.clean(*payload.Content)
	}
	if payload.Price != nil {
		fields["price"] = *payload.Price
	}
	if payload.MinParticipants != nil {
		fields["min_participants"] = *payload.MinParticipants
	}
	if payload.Deadline != nil {
		deadline, err := parseDeadline(*payload.Deadline)
		if err != nil {
			return dto.ListingResponse{}, err
		}
		fields["deadline"] = deadline
	}
	if payload.PickupLocation != nil {
		fields["pickup_location"] = s.clean(*payload.PickupLocation)
	}
	if payload.Images != nil {
		fields["images"] = datatypes.JSONSlice[string](*payload.Images)
	}
	if payload.Category != nil {
		fields["category"] = *payload.Category
	}

	updated, err := s.listings.Update(ctx, id, fields)
	if err != nil {
		return dto.ListingResponse{}, notFound("listing", err)
	}

	responses, err := s.decorate(ctx, []models.Listing{updated}, requesterID)
	if err != nil {
		return dto.ListingResponse{}, err
	}
	return responses[0], nil
}

// Join checks, in order: listing exists, user exists, user is not the author, listing is open.
// Duplicate participation is detected by the unique index, not a pre-check.
func (s *listingService) Join(ctx context.Context, listingID, userID string) (dto.JoinListingResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "listing.join", trace.WithAttributes(
		attribute.String("listing.id", listingID),
		attribute.String("listing.user_id", userID),
	))
	defer span.End()

	listing, err := s.listings.FindByID(spanCtx, listingID)
	if err != nil {
		return dto.JoinListingResponse{}, notFound("listing", err)
	}

	exists, err := s.users.Exists(spanCtx, userID)
	if err != nil {
		return dto.JoinListingResponse{}, err
	}
	if !exists {
		return dto.JoinListingResponse{}, fmt.Errorf("user: %w", ErrNotFound)
	}

	if listing.AuthorID == userID {
		return dto.JoinListingResponse{}, ErrAuthorCannotJoin
	}
	if listing.Status != models.ListingStatusOpen {
		return dto.JoinListingResponse{}, ErrPostNotOpen
	}

	participant := models.Participant{ListingID: listingID, UserID: userID}
	count, err := s.participants.Join(spanCtx, &participant)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.JoinListingResponse{}, ErrAlreadyParticipated
		}
		span.RecordError(err)
		return dto.JoinListingResponse{}, err
	}
	listing.CurrentQuantity = count

	s.logger.Info().Str("listing_id", listingID).Str("user_id", userID).Int("current_quantity", count).Msg("participant joined")
	s.events.Dispatch(spanCtx, Event{Type: EventParticipantJoined, Listing: listing, UserID: userID})

	return dto.JoinListingResponse{
		Participant: dto.NewParticipantResponse(participant),
		Listing:     dto.NewListingResponse(listing),
	}, nil
}

func (s *listingService) Leave(ctx context.Context, listingID, userID string) (dto.LeaveListingResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "listing.leave", trace.WithAttributes(
		attribute.String("listing.id", listingID),
		attribute.String("listing.user_id", userID),
	))
	defer span.End()

	listing, err := s.listings.FindByID(spanCtx, listingID)
	if err != nil {
		return dto.LeaveListingResponse{}, notFound("listing", err)
	}

	count, err := s.participants.Leave(spanCtx, listingID, userID)
	if err != nil {
		return dto.LeaveListingResponse{}, notFound("participant", err)
	}
	listing.CurrentQuantity = count

	s.logger.Info().Str("listing_id", listingID).Str("user_id", userID).Int("current_quantity", count).Msg("participant left")
	s.events.Dispatch(spanCtx, Event{Type: EventParticipantLeft, Listing: listing, UserID: userID})

	return dto.LeaveListingResponse{Listing: dto.NewListingResponse(listing)}, nil
}

func (s *listingService) ChangeStatus(ctx context.Context, listingID string, status models.ListingStatus, requesterID string) (dto.ListingResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "listing.change_status", trace.WithAttributes(
		attribute.String("listing.id", listingID),
		attribute.String("listing.status", string(status)),
	))
	defer span.End()

	listing, err := s.listings.FindByID(spanCtx, listingID)
	if err != nil {
		return dto.ListingResponse{}, notFound("listing", err)
	}
	if requesterID == "" || listing.AuthorID != requesterID {
		return dto.ListingResponse{}, ErrForbidden
	}

	from := listing.Status
	if !canTransition(from, status) {
		return dto.ListingResponse{}, &TransitionError{From: from, To: status, Allowed: AllowedTransitions(from)}
	}

	if err := s.listings.UpdateStatus(spanCtx, listingID, from, status); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			span.RecordError(err)
			return dto.ListingResponse{}, err
		}
		// another request moved the listing first; report against the state it is in now
		current, findErr := s.listings.FindByID(spanCtx, listingID)
		if findErr != nil {
			return dto.ListingResponse{}, notFound("listing", findErr)
		}
		return dto.ListingResponse{}, &TransitionError{From: current.Status, To: status, Allowed: AllowedTransitions(current.Status)}
	}

	listing.Status = status
	listing.UpdatedAt = s.now()

	s.logger.Info().Str("listing_id", listingID).Str("from", string(from)).Str("to", string(status)).Msg("listing status changed")
	s.events.Dispatch(spanCtx, Event{Type: EventListingStatusChanged, Listing: listing, UserID: requesterID, From: from, To: status})

	responses, err := s.decorate(spanCtx, []models.Listing{listing}, requesterID)
	if err != nil {
		return dto.NewListingResponse(listing), nil
	}
	return responses[0], nil
}

func (s *listingService) Delete(ctx context.Context, listingID, requesterID string) error {
	spanCtx, span := s.tracer.Start(ctx, "listing.delete", trace.WithAttributes(
		attribute.String("listing.id", listingID),
	))
	defer span.End()

	listing, err := s.listings.FindByID(spanCtx, listingID)
	if err != nil {
		return notFound("listing", err)
	}
	if requesterID == "" || listing.AuthorID != requesterID {
		return ErrForbidden
	}

	if err := s.listings.Delete(spanCtx, listingID); err != nil {
		span.RecordError(err)
		return notFound("listing", err)
	}

	s.logger.Info().Str("listing_id", listingID).Msg("listing deleted")
	s.events.Dispatch(spanCtx, Event{Type: EventListingDeleted, Listing: listing, UserID: requesterID})
	return nil
}

func (s *listingService) ListParticipants(ctx context.Context, listingID string) ([]dto.ParticipantResponse, error) {
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		return nil, notFound("listing", err)
	}

	participants, err := s.participants.ListByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return dto.NewParticipantResponseSlice(participants), nil
}

func (s *listingService) ListParticipated(ctx context.Context, userID string) ([]dto.ListingResponse, error) {
	listings, err := s.participants.ListListingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, listings, userID)
}

func (s *listingService) IsParticipant(ctx context.Context, listingID, userID string) (bool, error) {
	return s.participants.Exists(ctx, listingID, userID)
}

func (s *listingService) clean(value string) string {
	return sanitizeText(s.sanitizer, value)
}

var deadlineLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDeadline(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range deadlineLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("deadline %q is not a valid timestamp: %w", value, ErrValidation)
}
