package conversations_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingchat/internal/app/handlers/conversations"
	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
	"listingchat/internal/domain/shared/errkind"
	"listingchat/internal/infra/storage/memory"
)

type fixture struct {
	store    *memory.ChatStore
	listings *memory.ListingGateway
	box      *memory.Outbox
	create   *conversations.CreateConversationHandler
	get      *conversations.GetConversationHandler
	list     *conversations.ListConversationsHandler
	appendH  *conversations.AppendMessageHandler
	messages *conversations.ListMessagesHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewChatStore()
	factory := memory.Factory{Store: store}
	gw := memory.NewListingGateway()
	_, err := gw.LoadFixtures(context.Background(), []byte(`[{"id":"L","owner":"A"}]`))
	require.NoError(t, err)
	box := memory.NewOutbox()

	var mu sync.Mutex
	tick := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	return &fixture{
		store:    store,
		listings: gw,
		box:      box,
		create:   &conversations.CreateConversationHandler{UoWFactory: factory, Listings: gw, Outbox: box, Clock: clock},
		get:      &conversations.GetConversationHandler{UoWFactory: factory},
		list:     &conversations.ListConversationsHandler{UoWFactory: factory},
		appendH:  &conversations.AppendMessageHandler{UoWFactory: factory, Outbox: box, Clock: clock},
		messages: &conversations.ListMessagesHandler{UoWFactory: factory},
	}
}

func TestCreateConversationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c1, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)
	assert.True(t, c1.Created)
	assert.Equal(t, "A", c1.OwnerID)
	assert.Equal(t, "B", c1.ParticipantID)

	again, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, c1.ID, again.ID)

	c2, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "C"})
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)

	list, err := f.list.Handle(ctx, conversations.ListConversationsQuery{UserID: "A"})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, c2.ID, list.Items[0].ID)

	// One started event per created conversation.
	assert.Len(t, f.box.Pending(), 2)
}

func TestCreateConversationRejectsOwnerAndUnknownListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "A"})
	assert.ErrorIs(t, err, domainconversations.ErrSelfConversationForbidden)

	_, err = f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "nope", RequesterID: "B"})
	assert.ErrorIs(t, err, domainlistings.ErrInvalidListing)

	list, err := f.list.Handle(ctx, conversations.ListConversationsQuery{UserID: "A"})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

type brokenGateway struct{ memory.ListingGateway }

func (*brokenGateway) ResolveOwner(context.Context, domainlistings.ListingID) (domainlistings.UserID, error) {
	return "", errors.New("listing service timeout")
}

func TestCreateConversationGatewayFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.create.Listings = &brokenGateway{}
	_, err := f.create.Handle(context.Background(), conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	assert.ErrorIs(t, err, domainlistings.ErrCollaboratorUnavailable)
	assert.Equal(t, errkind.Unavailable, errkind.Of(err))
}

func TestConcurrentCreateReturnsSameID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := make([]string, 20)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
			if assert.NoError(t, err) {
				ids[i] = res.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestAppendMessageUpdatesConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)

	msg, err := f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "B", Body: "hello"})
	require.NoError(t, err)

	got, err := f.get.Handle(ctx, conversations.GetConversationQuery{ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.LastMessageID)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(msg.CreatedAt))
}

func TestAppendMessageRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)

	_, err = f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "D", Body: "hi"})
	assert.ErrorIs(t, err, domainconversations.ErrForbiddenSender)

	_, err = f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: "missing", SenderID: "B", Body: "hi"})
	assert.ErrorIs(t, err, domainconversations.ErrUnknownConversation)
	assert.Equal(t, errkind.NotFound, errkind.Of(err))

	_, err = f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "B", Body: "   "})
	assert.ErrorIs(t, err, domainconversations.ErrEmptyBody)

	page, err := f.messages.Handle(ctx, conversations.ListMessagesQuery{ConversationID: conv.ID, ViewerID: "A"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	got, err := f.get.Handle(ctx, conversations.GetConversationQuery{ConversationID: conv.ID})
	require.NoError(t, err)
	assert.Empty(t, got.LastMessageID)
	assert.Nil(t, got.LastMessageAt)
}

func TestAppendMessageIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)

	cmd := conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "B", Body: "hello", IdempotencyKeyV: "client-1"}
	first, err := f.appendH.Handle(ctx, cmd)
	require.NoError(t, err)
	retry, err := f.appendH.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)
	assert.True(t, retry.Duplicate)
	assert.Equal(t, conv.ID+"/B/client-1", cmd.IdempotencyKey())

	page, err := f.messages.Handle(ctx, conversations.ListMessagesQuery{ConversationID: conv.ID, ViewerID: "B"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestAppendMessageKeyIsScopedToSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)

	fromB, err := f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "B", Body: "from B", IdempotencyKeyV: "shared"})
	require.NoError(t, err)
	fromA, err := f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "A", Body: "from A", IdempotencyKeyV: "shared"})
	require.NoError(t, err)
	assert.False(t, fromA.Duplicate)
	assert.NotEqual(t, fromB.ID, fromA.ID)
	assert.Equal(t, "from A", fromA.Body)

	_, err = f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "D", Body: "x", IdempotencyKeyV: "shared"})
	assert.ErrorIs(t, err, domainconversations.ErrForbiddenSender)

	page, err := f.messages.Handle(ctx, conversations.ListMessagesQuery{ConversationID: conv.ID, ViewerID: "B"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestListMessagesPagingAndAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.appendH.Handle(ctx, conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "A", Body: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	page, err := f.messages.Handle(ctx, conversations.ListMessagesQuery{ConversationID: conv.ID, ViewerID: "B", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "m2", page.Items[0].Body)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.messages.Handle(ctx, conversations.ListMessagesQuery{ConversationID: conv.ID, ViewerID: "B", Limit: 2, Before: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "m0", rest.Items[0].Body)
	assert.Empty(t, rest.NextCursor)

	_, err = f.messages.Handle(ctx, conversations.ListMessagesQuery{ConversationID: conv.ID, ViewerID: "D"})
	assert.ErrorIs(t, err, domainconversations.ErrNotParticipant)

	_, err = f.get.Handle(ctx, conversations.GetConversationQuery{ConversationID: conv.ID, ViewerID: "D"})
	assert.ErrorIs(t, err, domainconversations.ErrNotParticipant)

	_, err = f.get.Handle(ctx, conversations.GetConversationQuery{ConversationID: "missing"})
	assert.ErrorIs(t, err, domainconversations.ErrConversationNotFound)
}
