package scylla

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainconversations "listingchat/internal/domain/conversations"
	"listingchat/internal/infra/config"
)

// Needs SCYLLA_TEST_HOSTS, e.g. localhost:9042.
func setup(t *testing.T) *Store {
	t.Helper()
	hosts := os.Getenv("SCYLLA_TEST_HOSTS")
	if hosts == "" {
		t.Skip("SCYLLA_TEST_HOSTS not set")
	}
	cfg := config.Config{
		ScyllaHosts:       strings.Split(hosts, ","),
		ScyllaKeyspace:    fmt.Sprintf("listingchat_test_%d", time.Now().UnixNano()),
		ScyllaConsistency: gocql.Quorum,
		ScyllaTimeout:     10 * time.Second,
		ReplicationFactor: 1,
	}
	session, err := NewSession(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Query("DROP KEYSPACE IF EXISTS " + cfg.ScyllaKeyspace).Exec()
		session.Close()
	})
	return NewStore(session, nil)
}

func TestStoreConversationLifecycle(t *testing.T) {
	store := setup(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	first, err := domainconversations.Start(domainconversations.StartParams{ID: "c1", ListingID: "L", OwnerID: "A", ParticipantID: "B", Now: at})
	require.NoError(t, err)
	second, err := domainconversations.Start(domainconversations.StartParams{ID: "c2", ListingID: "L", OwnerID: "A", ParticipantID: "B", Now: at.Add(time.Second)})
	require.NoError(t, err)

	stored, created, err := store.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := store.Create(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)

	m1 := domainconversations.Message{ID: "m1", ConversationID: "c1", SenderID: "B", Body: "hi", IdempotencyKey: "k", CreatedAt: at.Add(time.Second)}
	m2 := domainconversations.Message{ID: "m2", ConversationID: "c1", SenderID: "A", Body: "hello", CreatedAt: at.Add(2 * time.Second)}
	_, _, err = store.Append(ctx, m2)
	require.NoError(t, err)
	_, _, err = store.Append(ctx, m1)
	require.NoError(t, err)

	retry := m1
	retry.ID = "m1-retry"
	dupe, duplicate, err := store.Append(ctx, retry)
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, domainconversations.MessageID("m1"), dupe.ID)

	conv, err := store.ByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domainconversations.MessageID("m2"), conv.LastMessageID)

	latest, err := store.LatestFor(ctx, []domainconversations.ConversationID{"c1", "c9"})
	require.NoError(t, err)
	assert.Len(t, latest, 1)
	assert.Equal(t, "hello", latest["c1"].Body)

	older, err := store.Recent(ctx, "c1", domainconversations.Page{Before: "m2"})
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, domainconversations.MessageID("m1"), older[0].ID)

	list, err := store.ListForUser(ctx, "A")
	require.NoError(t, err)
	require.Len(t, list, 1)

	sameKey := domainconversations.Message{ID: "m3", ConversationID: "c1", SenderID: "A", Body: "owner reuses k", IdempotencyKey: "k", CreatedAt: at.Add(3 * time.Second)}
	fromOwner, duplicate, err := store.Append(ctx, sameKey)
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, domainconversations.MessageID("m3"), fromOwner.ID)
	assert.Equal(t, domainconversations.ConversationID("c1"), list[0].ID)
}
