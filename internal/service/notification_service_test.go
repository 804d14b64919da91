package service

import (
	"context"
	"strings"
	"testing"

	"kollektiv/internal/models"
	"kollektiv/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationService(t *testing.T) (*NotificationService, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	svc := NewNotificationService(st)
	svc.now = newFakeClock().Now
	return svc, st
}

func TestCreate_DropsSelfNotification(t *testing.T) {
	svc, st := newNotificationService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, NotificationInput{
		Type:        models.NotificationLike,
		Sender:      Actor{ID: "u1", Name: "Anna"},
		RecipientID: "u1",
	})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, allNotifications(t, st, "u1"))

	// Moderation is the one type where sender may equal recipient.
	id, err = svc.Create(ctx, NotificationInput{
		Type:        models.NotificationModeration,
		Sender:      Actor{ID: "u1", Name: "Anna"},
		RecipientID: "u1",
		Title:       "Предупреждение",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, allNotifications(t, st, "u1"), 1)
}

func TestCreateLike_RefreshesExisting(t *testing.T) {
	svc, st := newNotificationService(t)
	ctx := context.Background()
	sender := Actor{ID: "u1", Name: "Anna", PhotoURL: "/anna.png"}

	first, err := svc.CreateLike(ctx, sender, "u2", "post-1")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, svc.MarkRead(ctx, first))

	second, err := svc.CreateLike(ctx, sender, "u2", "post-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	notifs := allNotifications(t, st, "u2")
	require.Len(t, notifs, 1)
	assert.False(t, notifs[0].Read, "refresh must clear the read flag")
	assert.Equal(t, "Anna", notifs[0].SenderName)

	// A like on a different post is a distinct notification.
	third, err := svc.CreateLike(ctx, sender, "u2", "post-2")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Len(t, allNotifications(t, st, "u2"), 2)
}

func TestCreateFollow_DedupsPerPair(t *testing.T) {
	svc, st := newNotificationService(t)
	ctx := context.Background()
	sender := Actor{ID: "u1", Name: "Anna"}

	first, err := svc.CreateFollow(ctx, sender, "u2")
	require.NoError(t, err)
	second, err := svc.CreateFollow(ctx, sender, "u2")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	notifs := allNotifications(t, st, "u2")
	require.Len(t, notifs, 1)
	assert.Equal(t, models.NotificationFollow, notifs[0].Type)
}

func TestCreateMessage_BumpsUnreadThenInsertsAfterRead(t *testing.T) {
	svc, st := newNotificationService(t)
	ctx := context.Background()
	sender := Actor{ID: "u1", Name: "Anna"}

	first, err := svc.CreateMessage(ctx, sender, "u2")
	require.NoError(t, err)

	notifs := allNotifications(t, st, "u2")
	require.Len(t, notifs, 1)
	firstSeen := notifs[0].CreatedAt

	second, err := svc.CreateMessage(ctx, sender, "u2")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	notifs = allNotifications(t, st, "u2")
	require.Len(t, notifs, 1)
	assert.Equal(t, "Новое сообщение", notifs[0].Message)
	assert.True(t, notifs[0].CreatedAt.After(firstSeen), "bump must advance the timestamp")

	// Once read, the next message starts a fresh notification.
	require.NoError(t, svc.MarkRead(ctx, first))
	third, err := svc.CreateMessage(ctx, sender, "u2")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Len(t, allNotifications(t, st, "u2"), 2)
}

func TestCreateComment_AlwaysInsertsWithPreview(t *testing.T) {
	svc, st := newNotificationService(t)
	ctx := context.Background()
	sender := Actor{ID: "u1", Name: "Anna"}

	long := strings.Repeat("о", 80)
	_, err := svc.CreateComment(ctx, sender, "u2", "post-1", "c1", long)
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, sender, "u2", "post-1", "c2", "короткий")
	require.NoError(t, err)

	notifs := allNotifications(t, st, "u2")
	require.Len(t, notifs, 2, "comments are never deduplicated")

	assert.Equal(t, "короткий", notifs[0].Message)
	assert.Equal(t, strings.Repeat("о", 50)+"...", notifs[1].Message)
}

func TestTruncatePreview_RuneBoundaries(t *testing.T) {
	exact := strings.Repeat("д", 50)
	assert.Equal(t, exact, truncatePreview(exact))
	assert.Equal(t, exact+"...", truncatePreview(exact+"x"))
	assert.Equal(t, "привет", truncatePreview("привет"))
}

func TestMarkAllRead_ScopedToRecipient(t *testing.T) {
	svc, st := newNotificationService(t)
	ctx := context.Background()

	_, err := svc.CreateLike(ctx, Actor{ID: "u1"}, "u2", "p1")
	require.NoError(t, err)
	_, err = svc.CreateFollow(ctx, Actor{ID: "u1"}, "u2")
	require.NoError(t, err)
	_, err = svc.CreateFollow(ctx, Actor{ID: "u1"}, "u3")
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllRead(ctx, "u2"))

	for _, n := range allNotifications(t, st, "u2") {
		assert.True(t, n.Read)
	}
	other := allNotifications(t, st, "u3")
	require.Len(t, other, 1)
	assert.False(t, other[0].Read, "another recipient's notifications stay unread")
}

func TestDeleteAll_ScopedToRecipient(t *testing.T) {
	svc, st := newNotificationService(t)
	ctx := context.Background()

	_, err := svc.CreateFollow(ctx, Actor{ID: "u1"}, "u2")
	require.NoError(t, err)
	_, err = svc.CreateFollow(ctx, Actor{ID: "u1"}, "u3")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAll(ctx, "u2"))

	assert.Empty(t, allNotifications(t, st, "u2"))
	assert.Len(t, allNotifications(t, st, "u3"), 1)
}

func TestListForRecipient_NewestFirst(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	_, err := svc.CreateComment(ctx, Actor{ID: "u1"}, "u2", "p1", "c1", "первый")
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, Actor{ID: "u1"}, "u2", "p1", "c2", "второй")
	require.NoError(t, err)

	notifs, err := svc.ListForRecipient(ctx, "u2", 10)
	require.NoError(t, err)
	require.Len(t, notifs, 2)
	assert.Equal(t, "второй", notifs[0].Message)
	assert.Equal(t, "первый", notifs[1].Message)
}
