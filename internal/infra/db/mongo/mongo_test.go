package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

// These tests need a reachable server: MONGO_TEST_URI=mongodb://localhost:27017
func setup(t *testing.T) (*Client, Factory) {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := New(ctx, uri, fmt.Sprintf("listingchat_test_%d", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.DB.Drop(context.Background())
		_ = client.Close(context.Background())
	})
	convs := NewConversationRepository(client.DB)
	msgs := NewMessageLog(client.DB, convs)
	require.NoError(t, convs.EnsureIndexes(ctx))
	require.NoError(t, msgs.EnsureIndexes(ctx))
	return client, Factory{DB: client.DB, Conversations: convs, Messages: msgs}
}

func start(t *testing.T, id, listing, owner, participant string, at time.Time) *domainconversations.Conversation {
	t.Helper()
	conv, err := domainconversations.Start(domainconversations.StartParams{
		ID:            domainconversations.ConversationID(id),
		ListingID:     domainlistings.ListingID(listing),
		OwnerID:       domainlistings.UserID(owner),
		ParticipantID: domainlistings.UserID(participant),
		Now:           at,
	})
	require.NoError(t, err)
	return conv
}

func TestConversationAndMessageRoundTrip(t *testing.T) {
	_, factory := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	ctx = uow.Bind(ctx, unit)
	defer unit.Rollback(ctx)

	first, created, err := unit.Conversations().Create(ctx, start(t, "c1", "L", "A", "B", base))
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := unit.Conversations().Create(ctx, start(t, "c2", "L", "A", "B", base))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	m1 := domainconversations.Message{ID: "m1", ConversationID: "c1", SenderID: "B", Body: "hi", IdempotencyKey: "k1", CreatedAt: base}
	m2 := domainconversations.Message{ID: "m2", ConversationID: "c1", SenderID: "A", Body: "hello", CreatedAt: base.Add(time.Second)}
	_, dup, err := unit.Messages().Append(ctx, m1)
	require.NoError(t, err)
	assert.False(t, dup)
	_, _, err = unit.Messages().Append(ctx, m2)
	require.NoError(t, err)

	replay := m1
	replay.ID = "m1-retry"
	stored, dup, err := unit.Messages().Append(ctx, replay)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, domainconversations.MessageID("m1"), stored.ID)

	latest, err := unit.Messages().LatestFor(ctx, []domainconversations.ConversationID{"c1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, domainconversations.MessageID("m2"), latest["c1"].ID)
	assert.NotContains(t, latest, domainconversations.ConversationID("missing"))

	page, err := unit.Messages().Recent(ctx, "c1", domainconversations.Page{Before: "m2"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domainconversations.MessageID("m1"), page[0].ID)

	sameKey := domainconversations.Message{ID: "m3", ConversationID: "c1", SenderID: "A", Body: "owner reuses k1", IdempotencyKey: "k1", CreatedAt: base.Add(2 * time.Second)}
	fromOwner, dup, err := unit.Messages().Append(ctx, sameKey)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, domainconversations.MessageID("m3"), fromOwner.ID)

	_, _, err = unit.Messages().Append(ctx, domainconversations.Message{ID: "x", ConversationID: "nope", SenderID: "A", Body: "x", CreatedAt: base})
	assert.ErrorIs(t, err, domainconversations.ErrUnknownConversation)
}

func TestListingGatewayAddParticipantOnce(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	gateway := NewListingGateway(client.DB)

	require.NoError(t, gateway.Upsert(ctx, &domainlistings.Listing{ID: "L", Owner: "A", UpdatedAt: time.Now()}))
	added, err := gateway.AddParticipant(ctx, "L", "B")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = gateway.AddParticipant(ctx, "L", "B")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = gateway.AddParticipant(ctx, "ghost", "B")
	assert.ErrorIs(t, err, domainlistings.ErrInvalidListing)
}
