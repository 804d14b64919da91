package service

import (
	"context"
	"fmt"
	"testing"

	"kollektiv/internal/models"
	"kollektiv/internal/store"
	"kollektiv/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatService(t *testing.T) (*ChatService, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	clock := newFakeClock()
	notifs := NewNotificationService(st)
	notifs.now = clock.Now
	svc := NewChatService(st, notifs)
	svc.now = clock.Now
	return svc, st
}

func getChat(t *testing.T, st *memstore.Store, chatID string) models.Chat {
	t.Helper()
	var chat models.Chat
	require.NoError(t, st.Get(context.Background(), store.ColChats, chatID, &chat))
	return chat
}

func TestCreateGroupChat(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	creator := seedUser(t, st, models.User{DisplayName: "Anna"})

	chatID, err := svc.CreateGroupChat(ctx, creator.ID, "Team", []string{"u2", "u3", "u2", ""}, "")
	require.NoError(t, err)

	chat := getChat(t, st, chatID)
	assert.Equal(t, models.ChatGroup, chat.Type)
	assert.Equal(t, "Team", chat.Name)
	assert.ElementsMatch(t, []string{"u2", "u3", creator.ID}, chat.Participants, "duplicates and blanks are dropped, creator appended")
	assert.Equal(t, []string{creator.ID}, chat.Admins)
	assert.Equal(t, creator.ID, chat.CreatedBy)

	msgs := chatMessages(t, st, chatID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Team создан", msgs[0].Text)
	assert.Equal(t, models.SystemSenderID, msgs[0].SenderID)
	assert.True(t, msgs[0].Read, "system messages are created already read")
	assert.True(t, msgs[0].IsSystemMessage)
}

func TestCreateGroupChat_RequiresName(t *testing.T) {
	svc, _ := newChatService(t)

	_, err := svc.CreateGroupChat(context.Background(), "u1", "", []string{"u2"}, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeInvalidArgument, models.ErrorCode(err))
}

func TestCreatePrivateChat_ReusesExisting(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	first, err := svc.CreatePrivateChat(ctx, "u1", "u2")
	require.NoError(t, err)
	// Reused from either side.
	again, err := svc.CreatePrivateChat(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := svc.CreatePrivateChat(ctx, "u1", "u3")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestAddUserToGroupChat(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})
	newcomer := seedUser(t, st, models.User{DisplayName: "Boris"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.AddUserToGroupChat(ctx, chatID, newcomer.ID, admin.ID))

	chat := getChat(t, st, chatID)
	assert.True(t, chat.HasParticipant(newcomer.ID))
	assert.False(t, chat.HasAdmin(newcomer.ID))

	msgs := chatMessages(t, st, chatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Anna добавил(а) Boris в чат", msgs[1].Text)

	err = svc.AddUserToGroupChat(ctx, chatID, newcomer.ID, admin.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeAlreadyInState, models.ErrorCode(err))
	assert.Len(t, chatMessages(t, st, chatID), 2, "a rejected add writes nothing")
}

func TestAddUserToGroupChat_AdminOnly(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})
	member := seedUser(t, st, models.User{DisplayName: "Boris"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", []string{member.ID}, "")
	require.NoError(t, err)

	err = svc.AddUserToGroupChat(ctx, chatID, "u9", member.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodePermissionDenied, models.ErrorCode(err))
}

func TestRemoveUserFromGroupChat(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})
	member := seedUser(t, st, models.User{DisplayName: "Boris"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", []string{member.ID}, "")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveUserFromGroupChat(ctx, chatID, member.ID, admin.ID, false))

	chat := getChat(t, st, chatID)
	assert.False(t, chat.HasParticipant(member.ID))

	msgs := chatMessages(t, st, chatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Anna удалил(а) Boris из чата", msgs[1].Text)

	err = svc.RemoveUserFromGroupChat(ctx, chatID, member.ID, admin.ID, false)
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestRemoveUserFromGroupChat_SelfLeave(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})
	member := seedUser(t, st, models.User{DisplayName: "Boris"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", []string{member.ID}, "")
	require.NoError(t, err)

	// Non-admins may remove themselves but nobody else.
	err = svc.RemoveUserFromGroupChat(ctx, chatID, admin.ID, member.ID, false)
	require.Error(t, err)
	assert.Equal(t, models.CodePermissionDenied, models.ErrorCode(err))

	require.NoError(t, svc.RemoveUserFromGroupChat(ctx, chatID, member.ID, member.ID, true))

	msgs := chatMessages(t, st, chatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Boris покинул(а) чат", msgs[1].Text)
}

func TestRemoveUserFromGroupChat_AdminLeavesAdmins(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})
	second := seedUser(t, st, models.User{DisplayName: "Boris"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", []string{second.ID}, "")
	require.NoError(t, err)
	require.NoError(t, svc.MakeUserAdmin(ctx, chatID, second.ID, admin.ID))

	require.NoError(t, svc.RemoveUserFromGroupChat(ctx, chatID, second.ID, second.ID, true))

	chat := getChat(t, st, chatID)
	assert.False(t, chat.HasParticipant(second.ID))
	assert.False(t, chat.HasAdmin(second.ID), "leaving admins stay a subset of participants")
}

func TestMakeUserAdmin(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})
	member := seedUser(t, st, models.User{DisplayName: "Boris"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", []string{member.ID}, "")
	require.NoError(t, err)

	require.NoError(t, svc.MakeUserAdmin(ctx, chatID, member.ID, admin.ID))
	updated := getChat(t, st, chatID)
	assert.True(t, updated.HasAdmin(member.ID))

	err = svc.MakeUserAdmin(ctx, chatID, member.ID, admin.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeAlreadyInState, models.ErrorCode(err))

	err = svc.MakeUserAdmin(ctx, chatID, "stranger", admin.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUpdateGroupChat(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", nil, "/old.png")
	require.NoError(t, err)

	t.Run("no-op writes nothing", func(t *testing.T) {
		same := "/old.png"
		changed, err := svc.UpdateGroupChat(ctx, chatID, admin.ID, GroupChatUpdate{Name: "Team", PhotoURL: &same})
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Len(t, chatMessages(t, st, chatID), 1, "no system message on a no-op")
	})

	t.Run("photo change", func(t *testing.T) {
		photo := "/new.png"
		changed, err := svc.UpdateGroupChat(ctx, chatID, admin.ID, GroupChatUpdate{PhotoURL: &photo})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "/new.png", getChat(t, st, chatID).PhotoURL)

		msgs := chatMessages(t, st, chatID)
		require.Len(t, msgs, 2)
		assert.Equal(t, "Anna Аватар чата был обновлен", msgs[1].Text)
	})

	t.Run("name change wins the summary", func(t *testing.T) {
		photo := "/newer.png"
		changed, err := svc.UpdateGroupChat(ctx, chatID, admin.ID, GroupChatUpdate{Name: "Crew", PhotoURL: &photo})
		require.NoError(t, err)
		assert.True(t, changed)

		chat := getChat(t, st, chatID)
		assert.Equal(t, "Crew", chat.Name)
		assert.Equal(t, "/newer.png", chat.PhotoURL)

		msgs := chatMessages(t, st, chatID)
		require.Len(t, msgs, 3)
		assert.Equal(t, fmt.Sprintf("Anna Название чата изменено на %q", "Crew"), msgs[2].Text)
	})
}

func TestSendMessage(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	anna := seedUser(t, st, models.User{DisplayName: "Anna"})
	boris := seedUser(t, st, models.User{DisplayName: "Boris"})

	chatID, err := svc.CreatePrivateChat(ctx, anna.ID, boris.ID)
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, SendMessageInput{
		ChatID: chatID,
		Sender: Actor{ID: anna.ID, Name: "Anna"},
		Text:   "привет",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	chat := getChat(t, st, chatID)
	assert.Equal(t, "привет", chat.LastMessage.Text)
	assert.Equal(t, anna.ID, chat.LastMessage.SenderID)

	assert.Len(t, allNotifications(t, st, boris.ID), 1)
	assert.Empty(t, allNotifications(t, st, anna.ID), "the sender is never notified")
}

func TestSendMessage_ParticipantGate(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	chatID, err := svc.CreatePrivateChat(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendMessageInput{
		ChatID: chatID,
		Sender: Actor{ID: "stranger"},
		Text:   "hi",
	})
	require.Error(t, err)
	assert.Equal(t, models.CodePermissionDenied, models.ErrorCode(err))

	_, err = svc.SendMessage(ctx, SendMessageInput{ChatID: chatID, Sender: Actor{ID: "u1"}})
	require.Error(t, err)
	assert.Equal(t, models.CodeInvalidArgument, models.ErrorCode(err))
}

func TestEditMessage(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()

	chatID, err := svc.CreatePrivateChat(ctx, "u1", "u2")
	require.NoError(t, err)
	msg, err := svc.SendMessage(ctx, SendMessageInput{ChatID: chatID, Sender: Actor{ID: "u1"}, Text: "стартовый"})
	require.NoError(t, err)

	err = svc.EditMessage(ctx, msg.ID, "u2", "чужая правка")
	require.Error(t, err)
	assert.Equal(t, models.CodePermissionDenied, models.ErrorCode(err))

	require.NoError(t, svc.EditMessage(ctx, msg.ID, "u1", "исправлено"))

	var edited models.Message
	require.NoError(t, st.Get(ctx, store.ColMessages, msg.ID, &edited))
	assert.Equal(t, "исправлено", edited.Text)
	assert.True(t, edited.Edited)
}

func TestEditMessage_SystemImmutable(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", nil, "")
	require.NoError(t, err)

	msgs := chatMessages(t, st, chatID)
	require.Len(t, msgs, 1)

	err = svc.EditMessage(ctx, msgs[0].ID, models.SystemSenderID, "hacked")
	require.Error(t, err)
	assert.Equal(t, models.CodeInvalidArgument, models.ErrorCode(err))
}

func TestUserChats_OrderedByLastMessage(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	first, err := svc.CreatePrivateChat(ctx, "u1", "u2")
	require.NoError(t, err)
	second, err := svc.CreatePrivateChat(ctx, "u1", "u3")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendMessageInput{ChatID: first, Sender: Actor{ID: "u1"}, Text: "старое"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, SendMessageInput{ChatID: second, Sender: Actor{ID: "u1"}, Text: "свежее"})
	require.NoError(t, err)

	chats, err := svc.UserChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second, chats[0].ID)
	assert.Equal(t, first, chats[1].ID)

	none, err := svc.UserChats(ctx, "u9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChatMessages_ParticipantGate(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	chatID, err := svc.CreatePrivateChat(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, SendMessageInput{ChatID: chatID, Sender: Actor{ID: "u1"}, Text: "a"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, SendMessageInput{ChatID: chatID, Sender: Actor{ID: "u2"}, Text: "b"})
	require.NoError(t, err)

	msgs, err := svc.ChatMessages(ctx, chatID, "u2", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Text, "oldest first")

	_, err = svc.ChatMessages(ctx, chatID, "stranger", 0)
	require.Error(t, err)
	assert.Equal(t, models.CodePermissionDenied, models.ErrorCode(err))
}

func TestDisplayNameFallback(t *testing.T) {
	svc, st := newChatService(t)
	ctx := context.Background()
	admin := seedUser(t, st, models.User{DisplayName: "Anna"})

	chatID, err := svc.CreateGroupChat(ctx, admin.ID, "Team", nil, "")
	require.NoError(t, err)

	// The added user has no document; the system message falls back.
	require.NoError(t, svc.AddUserToGroupChat(ctx, chatID, "ghost", admin.ID))

	msgs := chatMessages(t, st, chatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Anna добавил(а) Пользователь в чат", msgs[1].Text)
}
