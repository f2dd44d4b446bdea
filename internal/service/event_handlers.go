package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

// TrustScoreHandler applies the fixed trust deltas for lifecycle events.
type TrustScoreHandler struct {
	trust        TrustService
	participants repository.ParticipantRepository
}

// NewTrustScoreHandler constructs the trust score side-effect handler.
func NewTrustScoreHandler(trust TrustService, participants repository.ParticipantRepository) *TrustScoreHandler {
	return &TrustScoreHandler{trust: trust, participants: participants}
}

func (h *TrustScoreHandler) Name() string { return "trust_score" }

func (h *TrustScoreHandler) Plan(ctx context.Context, event Event) ([]SideEffect, error) {
	author := event.Listing.AuthorID

	switch event.Type {
	case EventParticipantLeft:
		return []SideEffect{h.adjust(event.UserID, TrustDeltaLeave, TrustReasonLeave)}, nil
	case EventListingDeleted:
		return []SideEffect{h.adjust(author, TrustDeltaDeleteAuthor, TrustReasonDeleteAuthor)}, nil
	case EventListingStatusChanged:
		switch event.To {
		case models.ListingStatusClosed:
			effects := []SideEffect{h.adjust(author, TrustDeltaCloseAuthor, TrustReasonCloseAuthor)}
			participants, err := h.participants.ListUserIDs(ctx, event.Listing.ID)
			if err != nil {
				return effects, fmt.Errorf("list participants: %w", err)
			}
			for _, userID := range participants {
				effects = append(effects, h.adjust(userID, TrustDeltaCloseParticipant, TrustReasonCloseParticipant))
			}
			return effects, nil
		case models.ListingStatusCancelled:
			return []SideEffect{h.adjust(author, TrustDeltaCancelAuthor, TrustReasonCancelAuthor)}, nil
		}
	}

	return nil, nil
}

func (h *TrustScoreHandler) adjust(userID string, delta int, reason string) SideEffect {
	return SideEffect{
		Name: reason + ":" + userID,
		Run: func(ctx context.Context) error {
			return h.trust.Adjust(ctx, userID, delta, reason)
		},
	}
}

// NotificationHandler writes lifecycle notifications to the outbox.
type NotificationHandler struct {
	notifications NotificationService
	participants  repository.ParticipantRepository
	favorites     repository.FavoriteRepository
}

// NewNotificationHandler constructs the notification side-effect handler.
func NewNotificationHandler(notifications NotificationService, participants repository.ParticipantRepository, favorites repository.FavoriteRepository) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		participants:  participants,
		favorites:     favorites,
	}
}

func (h *NotificationHandler) Name() string { return "notification" }

func (h *NotificationHandler) Plan(ctx context.Context, event Event) ([]SideEffect, error) {
	listing := event.Listing

	switch event.Type {
	case EventParticipantJoined:
		return h.notify(event, models.NotificationNewParticipant, []string{listing.AuthorID}), nil
	case EventParticipantLeft:
		return h.notify(event, models.NotificationParticipantCancel, []string{listing.AuthorID}), nil
	case EventListingStatusChanged:
		return h.planStatus(ctx, event)
	case EventListingDeadlineSoon:
		participants, err := h.participants.ListUserIDs(ctx, listing.ID)
		if err != nil {
			// favoriters cannot be told apart from participants without the list
			return h.notify(event, models.NotificationDeadlineSoon, []string{listing.AuthorID}), fmt.Errorf("list participants: %w", err)
		}
		involved := union([]string{listing.AuthorID}, participants)
		effects := h.notify(event, models.NotificationDeadlineSoon, involved)
		favoriters, err := h.favorites.ListUserIDs(ctx, listing.ID)
		if err != nil {
			return effects, fmt.Errorf("list favoriters: %w", err)
		}
		return append(effects, h.notify(event, models.NotificationFavoriteDeadline, difference(favoriters, involved))...), nil
	}

	return nil, nil
}

func (h *NotificationHandler) planStatus(ctx context.Context, event Event) ([]SideEffect, error) {
	listing := event.Listing

	switch event.To {
	case models.ListingStatusClosed:
		participants, err := h.participants.ListUserIDs(ctx, listing.ID)
		if err != nil {
			return h.notify(event, models.NotificationPostCompleted, []string{listing.AuthorID}), fmt.Errorf("list participants: %w", err)
		}
		return h.notify(event, models.NotificationPostCompleted, union([]string{listing.AuthorID}, participants)), nil
	case models.ListingStatusCancelled:
		var errs []error
		participants, err := h.participants.ListUserIDs(ctx, listing.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list participants: %w", err))
		}
		favoriters, err := h.favorites.ListUserIDs(ctx, listing.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list favoriters: %w", err))
		}
		return h.notify(event, models.NotificationPostCancelled, union(participants, favoriters)), errors.Join(errs...)
	case models.ListingStatusCompleted:
		participants, err := h.participants.ListUserIDs(ctx, listing.ID)
		if err != nil {
			return nil, err
		}
		favoriters, err := h.favorites.ListUserIDs(ctx, listing.ID)
		if err != nil {
			return nil, err
		}
		recipients := difference(favoriters, union([]string{listing.AuthorID}, participants))
		return h.notify(event, models.NotificationFavoriteCompleted, recipients), nil
	}

	return nil, nil
}

// notify plans one insert per recipient.
func (h *NotificationHandler) notify(event Event, kind models.NotificationType, recipients []string) []SideEffect {
	if len(recipients) == 0 {
		return nil
	}

	title, message := notificationCopy(kind, event.Listing)
	postID := event.Listing.ID
	metadata := map[string]interface{}{"event": string(event.Type)}
	if event.To != "" {
		metadata["status"] = string(event.To)
	}
	if event.UserID != "" {
		metadata["actorId"] = event.UserID
	}

	effects := make([]SideEffect, 0, len(recipients))
	for _, userID := range recipients {
		payload := dto.NotificationCreateRequest{
			UserID:   userID,
			Type:     string(kind),
			Title:    title,
			Message:  message,
			PostID:   &postID,
			Metadata: metadata,
		}
		effects = append(effects, SideEffect{
			Name: string(kind) + ":" + userID,
			Run: func(ctx context.Context) error {
				_, err := h.notifications.Create(ctx, payload)
				return err
			},
		})
	}
	return effects
}

func notificationCopy(kind models.NotificationType, listing models.Listing) (string, string) {
	switch kind {
	case models.NotificationNewParticipant:
		return "New participant", fmt.Sprintf("Someone joined %s.", listing.Title)
	case models.NotificationParticipantCancel:
		return "Participant cancelled", fmt.Sprintf("A participant left %s.", listing.Title)
	case models.NotificationPostCompleted:
		return "Group buy completed", fmt.Sprintf("The group buy for %s has closed.", listing.Title)
	case models.NotificationPostCancelled:
		return "Group buy cancelled", fmt.Sprintf("The group buy for %s was cancelled.", listing.Title)
	case models.NotificationDeadlineSoon:
		return "Deadline approaching", fmt.Sprintf("%s closes at %s.", listing.Title, listing.Deadline.UTC().Format(time.RFC3339))
	case models.NotificationFavoriteDeadline:
		return "Favorite closing soon", fmt.Sprintf("%s, which you saved, closes at %s.", listing.Title, listing.Deadline.UTC().Format(time.RFC3339))
	case models.NotificationFavoriteCompleted:
		return "Favorite completed", fmt.Sprintf("%s, which you saved, is complete.", listing.Title)
	default:
		return "Listing update", listing.Title
	}
}

// union returns the distinct ids of both slices in first-seen order.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// difference returns the distinct ids of a that are not in b.
func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, id := range b {
		exclude[id] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, id := range union(a, nil) {
		if _, ok := exclude[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
