package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
)

func TestListingJoinNotifiesAuthorAndRejectsAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	listing := f.listing(t, author.ID, 2)
	require.Equal(t, 0, listing.CurrentQuantity)

	joined, err := f.listings.Join(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, joined.Listing.CurrentQuantity)
	require.Equal(t, alice.ID, joined.Participant.UserID)

	notes := f.notificationsFor(t, author.ID, models.NotificationNewParticipant)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].PostID)
	require.Equal(t, listing.ID, *notes[0].PostID)

	_, err = f.listings.Join(ctx, listing.ID, author.ID)
	require.ErrorIs(t, err, ErrAuthorCannotJoin)
}

func TestListingJoinThenLeaveCostsTrust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	listing := f.listing(t, author.ID, 2)

	_, err := f.listings.Join(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	before := f.trustScore(t, alice.ID)

	left, err := f.listings.Leave(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 0, left.Listing.CurrentQuantity)
	require.Equal(t, before+TrustDeltaLeave, f.trustScore(t, alice.ID))
	require.Len(t, f.notificationsFor(t, author.ID, models.NotificationParticipantCancel), 1)

	_, err = f.listings.Leave(ctx, listing.ID, alice.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, before+TrustDeltaLeave, f.trustScore(t, alice.ID))
}

func TestListingCloseRewardsAuthorAndParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	listing := f.listing(t, author.ID, 2)

	for _, id := range []string{alice.ID, bob.ID} {
		_, err := f.listings.Join(ctx, listing.ID, id)
		require.NoError(t, err)
	}

	closed, err := f.listings.ChangeStatus(ctx, listing.ID, models.ListingStatusClosed, author.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.ListingStatusClosed), closed.Status)

	require.Equal(t, int64(3), f.countNotifications(t, models.NotificationPostCompleted))
	for _, id := range []string{author.ID, alice.ID, bob.ID} {
		require.Len(t, f.notificationsFor(t, id, models.NotificationPostCompleted), 1)
	}

	require.Equal(t, models.DefaultTrustScore+TrustDeltaCloseAuthor, f.trustScore(t, author.ID))
	require.Equal(t, models.DefaultTrustScore+TrustDeltaCloseParticipant, f.trustScore(t, alice.ID))
	require.Equal(t, models.DefaultTrustScore+TrustDeltaCloseParticipant, f.trustScore(t, bob.ID))

	_, err = f.listings.Join(ctx, listing.ID, f.user(t, "late").ID)
	require.ErrorIs(t, err, ErrPostNotOpen)
}

func TestListingConcurrentJoinSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	listing := f.listing(t, author.ID, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.listings.Join(ctx, listing.ID, alice.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyParticipated)
	}
	require.Equal(t, 1, succeeded)

	stored, err := f.listings.Get(ctx, listing.ID, "")
	require.NoError(t, err)
	require.Equal(t, 1, stored.CurrentQuantity)
}

func TestListingJoinChecksExistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	listing := f.listing(t, author.ID, 1)

	_, err := f.listings.Join(ctx, uuid.NewString(), author.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.listings.Join(ctx, listing.ID, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListingStatusTransitions(t *testing.T) {
	cases := []struct {
		path []models.ListingStatus
		to   models.ListingStatus
		ok   bool
	}{
		{nil, models.ListingStatusClosed, true},
		{nil, models.ListingStatusCancelled, true},
		{nil, models.ListingStatusInProgress, false},
		{nil, models.ListingStatusCompleted, false},
		{nil, models.ListingStatusOpen, false},
		{[]models.ListingStatus{models.ListingStatusClosed}, models.ListingStatusInProgress, true},
		{[]models.ListingStatus{models.ListingStatusClosed}, models.ListingStatusCancelled, true},
		{[]models.ListingStatus{models.ListingStatusClosed}, models.ListingStatusOpen, false},
		{[]models.ListingStatus{models.ListingStatusClosed, models.ListingStatusInProgress}, models.ListingStatusCompleted, true},
		{[]models.ListingStatus{models.ListingStatusClosed, models.ListingStatusInProgress}, models.ListingStatusCancelled, true},
		{[]models.ListingStatus{models.ListingStatusClosed, models.ListingStatusInProgress}, models.ListingStatusClosed, false},
		{[]models.ListingStatus{models.ListingStatusClosed, models.ListingStatusInProgress, models.ListingStatusCompleted}, models.ListingStatusCancelled, false},
		{[]models.ListingStatus{models.ListingStatusCancelled}, models.ListingStatusOpen, false},
	}

	for _, tc := range cases {
		from := models.ListingStatusOpen
		if len(tc.path) > 0 {
			from = tc.path[len(tc.path)-1]
		}
		t.Run(string(from)+"->"+string(tc.to), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			author := f.user(t, "author")
			listing := f.listing(t, author.ID, 1)

			for _, step := range tc.path {
				_, err := f.listings.ChangeStatus(ctx, listing.ID, step, author.ID)
				require.NoError(t, err)
			}

			result, err := f.listings.ChangeStatus(ctx, listing.ID, tc.to, author.ID)
			if tc.ok {
				require.NoError(t, err)
				require.Equal(t, string(tc.to), result.Status)
				return
			}

			require.ErrorIs(t, err, ErrInvalidTransition)
			var transition *TransitionError
			require.ErrorAs(t, err, &transition)
			require.Equal(t, from, transition.From)
			require.Equal(t, AllowedTransitions(from), transition.Allowed)

			stored, err := f.listingRepo.FindByID(ctx, listing.ID)
			require.NoError(t, err)
			require.Equal(t, from, stored.Status)
		})
	}
}

func TestListingChangeStatusRequiresAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	stranger := f.user(t, "stranger")
	listing := f.listing(t, author.ID, 1)

	_, err := f.listings.ChangeStatus(ctx, listing.ID, models.ListingStatusClosed, stranger.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.listings.ChangeStatus(ctx, uuid.NewString(), models.ListingStatusClosed, author.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListingCancelNotifiesParticipantsAndFavoriters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	fan := f.user(t, "fan")
	listing := f.listing(t, author.ID, 2)

	_, err := f.listings.Join(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.favorites.Add(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	_, err = f.favorites.Add(ctx, listing.ID, alice.ID)
	require.NoError(t, err)

	_, err = f.listings.ChangeStatus(ctx, listing.ID, models.ListingStatusCancelled, author.ID)
	require.NoError(t, err)

	require.Len(t, f.notificationsFor(t, alice.ID, models.NotificationPostCancelled), 1)
	require.Len(t, f.notificationsFor(t, fan.ID, models.NotificationPostCancelled), 1)
	require.Empty(t, f.notificationsFor(t, author.ID, models.NotificationPostCancelled))
	require.Equal(t, models.DefaultTrustScore+TrustDeltaCancelAuthor, f.trustScore(t, author.ID))
}

func TestListingCompleteNotifiesOnlyBystanderFavoriters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	fan := f.user(t, "fan")
	listing := f.listing(t, author.ID, 1)

	_, err := f.listings.Join(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	for _, id := range []string{alice.ID, fan.ID, author.ID} {
		_, err = f.favorites.Add(ctx, listing.ID, id)
		require.NoError(t, err)
	}

	for _, status := range []models.ListingStatus{models.ListingStatusClosed, models.ListingStatusInProgress, models.ListingStatusCompleted} {
		_, err = f.listings.ChangeStatus(ctx, listing.ID, status, author.ID)
		require.NoError(t, err)
	}

	require.Equal(t, int64(1), f.countNotifications(t, models.NotificationFavoriteCompleted))
	require.Len(t, f.notificationsFor(t, fan.ID, models.NotificationFavoriteCompleted), 1)
}

func TestListingDeleteRequiresAuthorAndPenalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	listing := f.listing(t, author.ID, 2)
	_, err := f.listings.Join(ctx, listing.ID, alice.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.listings.Delete(ctx, listing.ID, alice.ID), ErrForbidden)
	require.NoError(t, f.listings.Delete(ctx, listing.ID, author.ID))

	_, err = f.listings.Get(ctx, listing.ID, "")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, models.DefaultTrustScore+TrustDeltaDeleteAuthor, f.trustScore(t, author.ID))

	joined, err := f.listings.IsParticipant(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, joined)
}

func TestListingCreateValidatesAndSanitizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "author")

	_, err := f.listings.Create(ctx, dto.ListingCreateRequest{
		AuthorID:        author.ID,
		Title:           "Late",
		Content:         "too late",
		Price:           1,
		MinParticipants: 1,
		Deadline:        time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.listings.Create(ctx, dto.ListingCreateRequest{AuthorID: author.ID})
	require.Error(t, err)
	require.Equal(t, KindValidation, ErrorKind(err))

	food := string(models.CategoryFood)
	created, err := f.listings.Create(ctx, dto.ListingCreateRequest{
		AuthorID:        author.ID,
		Title:           "Tteokbokki <script>alert(1)</script>",
		Content:         "<b>spicy</b>",
		Price:           4.5,
		MinParticipants: 3,
		Deadline:        time.Now().Add(24 * time.Hour).UTC().Format("2006-01-02T15:04"),
		Category:        &food,
	})
	require.NoError(t, err)
	require.Equal(t, "Tteokbokki", created.Title)
	require.Equal(t, "<b>spicy</b>", created.Content)
	require.Equal(t, string(models.ListingStatusOpen), created.Status)
	require.Equal(t, 0, created.CurrentQuantity)

	page, err := f.listings.List(ctx, dto.ListingQuery{Category: food}, "")
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
}

func TestListingViewerSeesFavoriteState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	fan := f.user(t, "fan")
	listing := f.listing(t, author.ID, 1)

	status, err := f.favorites.Add(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	require.True(t, status.IsFavorite)
	require.Equal(t, int64(1), status.FavoriteCount)

	status, err = f.favorites.Add(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.FavoriteCount)

	viewed, err := f.listings.Get(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	require.True(t, viewed.IsFavorite)
	require.Equal(t, int64(1), viewed.FavoriteCount)

	anonymous, err := f.listings.Get(ctx, listing.ID, "")
	require.NoError(t, err)
	require.False(t, anonymous.IsFavorite)

	page, err := f.favorites.List(ctx, fan.ID, dto.FavoriteQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, listing.ID, page.Items[0].ID)

	status, err = f.favorites.Remove(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	require.False(t, status.IsFavorite)
	_, err = f.favorites.Remove(ctx, listing.ID, fan.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListingUpdateRequiresAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	stranger := f.user(t, "stranger")
	listing := f.listing(t, author.ID, 1)

	title := "Renamed"
	_, err := f.listings.Update(ctx, listing.ID, stranger.ID, dto.ListingUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := f.listings.Update(ctx, listing.ID, author.ID, dto.ListingUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)
}

func TestUserRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.user(t, "dana")
	require.Equal(t, models.DefaultTrustScore, user.TrustScore)

	_, err := f.users.Register(ctx, dto.UserCreateRequest{Email: "DANA@campus.test", Nickname: "other", StudentID: "S-x"})
	require.ErrorIs(t, err, ErrUserConflict)
	require.Equal(t, KindValidation, ErrorKind(err))

	fetched, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "dana@campus.test", fetched.Email)
}
