package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
)

func TestStoredTextKeepsPlainCharacters(t *testing.T) {
	f, author, member, room := chatRoomFixture(t)
	ctx := context.Background()

	created, err := f.listings.Create(ctx, dto.ListingCreateRequest{
		AuthorID:        author.ID,
		Title:           "Ramen & Gyoza",
		Content:         "price < 5000 won, it's <i>cheap</i>",
		Price:           5000,
		MinParticipants: 2,
		Deadline:        time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	stored, err := f.listings.Get(ctx, created.ID, "")
	require.NoError(t, err)
	require.Equal(t, "Ramen & Gyoza", stored.Title)
	require.Equal(t, "price < 5000 won, it's <i>cheap</i>", stored.Content)

	_, err = f.chat.SendMessage(ctx, dto.ChatSendRequest{ChatRoomID: room.ID, SenderID: member.ID, Content: `1 < 2 & "ok", I'm coming<script>x()</script>`})
	require.NoError(t, err)

	messages, err := f.chat.ListMessages(ctx, room.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, `1 < 2 & "ok", I'm coming`, messages[0].Content)

	notification, err := f.notifications.Create(ctx, dto.NotificationCreateRequest{
		UserID:  uuid.NewString(),
		Type:    string(models.NotificationNewParticipant),
		Title:   "Tom & Jerry's <b>order</b>",
		Message: "a < b",
	})
	require.NoError(t, err)
	require.Equal(t, "Tom & Jerry's order", notification.Title)
	require.Equal(t, "a < b", notification.Message)
}
