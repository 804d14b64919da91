package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"kollektiv/internal/models"
	"kollektiv/internal/store"
	"kollektiv/internal/store/memstore"

	"github.com/stretchr/testify/require"
)

// fakeClock hands out strictly increasing timestamps at millisecond
// granularity, the precision the store keeps, so dedup refreshes are
// observable as timestamp bumps.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(10 * time.Millisecond)
	return c.t
}

func seedUser(t *testing.T, st *memstore.Store, u models.User) models.User {
	t.Helper()
	id, err := st.Create(context.Background(), store.ColUsers, &u)
	require.NoError(t, err)
	u.ID = id
	return u
}

func allNotifications(t *testing.T, st *memstore.Store, recipientID string) []models.Notification {
	t.Helper()
	var notifs []models.Notification
	err := st.Query(context.Background(), store.ColNotifications, store.Query{
		Predicates: []store.Predicate{
			store.Where("recipientId", store.OpEq, recipientID),
		},
		OrderField: "createdAt",
		OrderDesc:  true,
	}, &notifs)
	require.NoError(t, err)
	return notifs
}

func chatMessages(t *testing.T, st *memstore.Store, chatID string) []models.Message {
	t.Helper()
	var msgs []models.Message
	err := st.Query(context.Background(), store.ColMessages, store.Query{
		Predicates: []store.Predicate{
			store.Where("chatId", store.OpEq, chatID),
		},
		OrderField: "timestamp",
	}, &msgs)
	require.NoError(t, err)
	return msgs
}
