package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/groupbuy-api/internal/models"
)

func TestDeadlineNotifierAnnouncesOnce(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	alice := f.user(t, "alice")
	fan := f.user(t, "fan")
	listing := f.listing(t, author.ID, 2)
	_, err = f.listings.Join(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.favorites.Add(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	_, err = f.favorites.Add(ctx, listing.ID, alice.ID)
	require.NoError(t, err)

	notifier := NewDeadlineNotifier(f.listingRepo, f.dispatcher, redisClient, "groupbuy-test", 72*time.Hour, time.Minute, testLogger())

	announced, err := notifier.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, announced)
	require.True(t, server.Exists("groupbuy-test:deadline:"+listing.ID))

	announced, err = notifier.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, announced)

	require.Len(t, f.notificationsFor(t, author.ID, models.NotificationDeadlineSoon), 1)
	require.Len(t, f.notificationsFor(t, alice.ID, models.NotificationDeadlineSoon), 1)
	require.Empty(t, f.notificationsFor(t, alice.ID, models.NotificationFavoriteDeadline))
	require.Len(t, f.notificationsFor(t, fan.ID, models.NotificationFavoriteDeadline), 1)
}

func TestDeadlineNotifierSkipsOutsideWindowAndClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.user(t, "author")
	later := f.listing(t, author.ID, 1)
	closed := f.listing(t, author.ID, 1)
	_, err := f.listings.ChangeStatus(ctx, closed.ID, models.ListingStatusClosed, author.ID)
	require.NoError(t, err)

	notifier := NewDeadlineNotifier(f.listingRepo, f.dispatcher, nil, "", 24*time.Hour, time.Minute, testLogger())

	announced, err := notifier.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, announced)

	// 48h deadlines enter a 24h window once a day has passed
	notifier.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	announced, err = notifier.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, announced)

	announced, err = notifier.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, announced)

	require.Len(t, f.notificationsFor(t, author.ID, models.NotificationDeadlineSoon), 1)
	var stored models.Notification
	require.NoError(t, f.db.Where("type = ?", models.NotificationDeadlineSoon).First(&stored).Error)
	require.Equal(t, later.ID, *stored.PostID)
}
