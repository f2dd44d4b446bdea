package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

type scriptedHandler struct {
	name    string
	planErr error
	panics  bool
	effects []SideEffect
	planned int
}

func (h *scriptedHandler) Name() string { return h.name }

func (h *scriptedHandler) Plan(_ context.Context, _ Event) ([]SideEffect, error) {
	h.planned++
	if h.panics {
		panic("handler exploded")
	}
	return h.effects, h.planErr
}

func TestEventDispatcherIsolatesHandlers(t *testing.T) {
	var delivered []string
	record := func(name string) SideEffect {
		return SideEffect{Name: name, Run: func(context.Context) error {
			delivered = append(delivered, name)
			return nil
		}}
	}

	panicking := &scriptedHandler{name: "panicking", panics: true}
	failing := &scriptedHandler{name: "failing", planErr: errors.New("store down")}
	healthy := &scriptedHandler{name: "healthy", effects: []SideEffect{record("a"), record("b")}}

	dispatcher := NewEventDispatcher(testLogger(), 2, panicking, failing, healthy)
	dispatcher.Dispatch(context.Background(), Event{Type: EventParticipantJoined, Listing: models.Listing{ID: "l-1"}})

	require.Equal(t, []string{"a", "b"}, delivered)
	require.Equal(t, 2, panicking.planned)
	require.Equal(t, 2, failing.planned)
	require.Equal(t, 1, healthy.planned)
}

func TestEventDispatcherRetriesOnlyFailedEffect(t *testing.T) {
	runs := map[string]int{}
	flaky := SideEffect{Name: "flaky", Run: func(context.Context) error {
		runs["flaky"]++
		if runs["flaky"] == 1 {
			return errors.New("transient")
		}
		return nil
	}}
	steady := SideEffect{Name: "steady", Run: func(context.Context) error {
		runs["steady"]++
		return nil
	}}

	handler := &scriptedHandler{name: "trust", effects: []SideEffect{steady, flaky}}
	NewEventDispatcher(testLogger(), 3, handler).Dispatch(context.Background(), Event{Type: EventListingDeleted})

	require.Equal(t, 1, runs["steady"])
	require.Equal(t, 2, runs["flaky"])
}

func TestEventDispatcherNilIsNoop(t *testing.T) {
	var dispatcher *EventDispatcher
	require.NotPanics(t, func() {
		dispatcher.Dispatch(context.Background(), Event{Type: EventParticipantLeft})
	})
}

func TestTrustScoreHandlerPlansPerRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	listing := f.listing(t, author.ID, 2)
	for _, id := range []string{alice.ID, bob.ID} {
		_, err := f.participants.Join(ctx, &models.Participant{ListingID: listing.ID, UserID: id})
		require.NoError(t, err)
	}

	handler := NewTrustScoreHandler(NewTrustService(f.userRepo, testLogger()), f.participants)
	stored, err := f.listingRepo.FindByID(ctx, listing.ID)
	require.NoError(t, err)

	effects, err := handler.Plan(ctx, Event{
		Type:    EventListingStatusChanged,
		Listing: stored,
		From:    models.ListingStatusOpen,
		To:      models.ListingStatusClosed,
	})
	require.NoError(t, err)
	require.Len(t, effects, 3)

	effects, err = handler.Plan(ctx, Event{
		Type:    EventListingStatusChanged,
		Listing: stored,
		From:    models.ListingStatusClosed,
		To:      models.ListingStatusInProgress,
	})
	require.NoError(t, err)
	require.Empty(t, effects)
}

type unreachableParticipants struct {
	repository.ParticipantRepository
}

func (unreachableParticipants) ListUserIDs(context.Context, string) ([]string, error) {
	return nil, errors.New("participants table locked")
}

func TestCloseRewardsAuthorWhenParticipantLookupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	listing := f.listing(t, author.ID, 2)
	_, err := f.listings.Join(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	stored, err := f.listingRepo.FindByID(ctx, listing.ID)
	require.NoError(t, err)

	participants := unreachableParticipants{}
	dispatcher := NewEventDispatcher(testLogger(), 2,
		NewTrustScoreHandler(NewTrustService(f.userRepo, testLogger()), participants),
		NewNotificationHandler(f.notifications, participants, f.favoriteRepo),
	)
	dispatcher.Dispatch(ctx, Event{
		Type:    EventListingStatusChanged,
		Listing: stored,
		From:    models.ListingStatusOpen,
		To:      models.ListingStatusClosed,
	})

	require.Equal(t, 60, f.trustScore(t, author.ID))
	require.Equal(t, 50, f.trustScore(t, alice.ID))
	require.Len(t, f.notificationsFor(t, author.ID, models.NotificationPostCompleted), 1)
	require.Empty(t, f.notificationsFor(t, alice.ID, models.NotificationPostCompleted))
}

func TestNotificationHandlerIsolatesRecipients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	listing := f.listing(t, author.ID, 2)
	stored, err := f.listingRepo.FindByID(ctx, listing.ID)
	require.NoError(t, err)

	handler := NewNotificationHandler(f.notifications, f.participants, f.favoriteRepo)
	effects := handler.notify(Event{Type: EventListingStatusChanged, Listing: stored, To: models.ListingStatusCancelled},
		models.NotificationPostCancelled, []string{strings.Repeat("x", 65), alice.ID})
	require.Len(t, effects, 2)

	NewEventDispatcher(testLogger(), 1, &scriptedHandler{name: "notification", effects: effects}).
		Dispatch(ctx, Event{Type: EventListingStatusChanged, Listing: stored})

	require.Len(t, f.notificationsFor(t, alice.ID, models.NotificationPostCancelled), 1)
	require.Equal(t, int64(1), f.countNotifications(t, models.NotificationPostCancelled))
}
