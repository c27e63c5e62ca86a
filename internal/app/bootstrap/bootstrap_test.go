package bootstrap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"listingchat/internal/app/bootstrap"
	"listingchat/internal/app/commands"
	"listingchat/internal/app/dto"
	"listingchat/internal/app/handlers/conversations"
	"listingchat/internal/app/handlers/inbox"
	"listingchat/internal/app/queries"
	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
	"listingchat/internal/domain/shared/errkind"
	"listingchat/internal/infra/storage/memory"
)

type publisherMock struct {
	mock.Mock
}

func (p *publisherMock) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	return p.Called(ctx, topic, key, payload, headers).Error(0)
}

func build(t *testing.T, pub *publisherMock) bootstrap.Buses {
	t.Helper()
	gateway := memory.NewListingGateway()
	_, err := gateway.LoadFixtures(context.Background(), []byte(`[{"id":"L1","owner":"owner"}]`))
	require.NoError(t, err)
	return bootstrap.Build(bootstrap.Deps{
		UoWFactory:  memory.Factory{Store: memory.NewChatStore()},
		Listings:    gateway,
		Outbox:      &memory.Outbox{Publisher: pub},
		Idempotency: memory.NewIdempotencyStore(time.Hour),
	})
}

func TestBusesRunConversationFlow(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, "conversation.events.v1", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	buses := build(t, pub)
	ctx := context.Background()

	conv, err := commands.Dispatch[conversations.CreateConversationCommand, *dto.Conversation](ctx, buses.Commands,
		conversations.CreateConversationCommand{ListingID: "L1", RequesterID: "guest"})
	require.NoError(t, err)
	assert.True(t, conv.Created)

	send := conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "guest", Body: "hi", IdempotencyKeyV: "k1"}
	first, err := commands.Dispatch[conversations.AppendMessageCommand, *dto.ChatMessage](ctx, buses.Commands, send)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	replay, err := commands.Dispatch[conversations.AppendMessageCommand, *dto.ChatMessage](ctx, buses.Commands, send)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.ID, replay.ID)

	box, err := queries.Ask[inbox.BuildInboxQuery, *dto.Inbox](ctx, buses.Queries, inbox.BuildInboxQuery{UserID: "owner"})
	require.NoError(t, err)
	require.Len(t, box.Entries, 1)
	require.NotNil(t, box.Entries[0].LatestMessage)
	assert.Equal(t, first.ID, box.Entries[0].LatestMessage.ID)

	// conversation.started plus one message_appended; the replay publishes nothing.
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestBusesRejectMissingCaller(t *testing.T) {
	buses := build(t, &publisherMock{})
	_, err := commands.Dispatch[conversations.CreateConversationCommand, *dto.Conversation](context.Background(), buses.Commands,
		conversations.CreateConversationCommand{ListingID: "L1"})
	require.Error(t, err)
	assert.NotEqual(t, errkind.Internal, errkind.Of(err))
}

func TestBusesDoNotReplayAnotherSendersKey(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	buses := build(t, pub)
	ctx := context.Background()

	conv, err := commands.Dispatch[conversations.CreateConversationCommand, *dto.Conversation](ctx, buses.Commands,
		conversations.CreateConversationCommand{ListingID: "L1", RequesterID: "guest"})
	require.NoError(t, err)
	_, err = commands.Dispatch[conversations.AppendMessageCommand, *dto.ChatMessage](ctx, buses.Commands,
		conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "guest", Body: "secret", IdempotencyKeyV: "k1"})
	require.NoError(t, err)

	res, err := commands.Dispatch[conversations.AppendMessageCommand, *dto.ChatMessage](ctx, buses.Commands,
		conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "intruder", Body: "x", IdempotencyKeyV: "k1"})
	require.ErrorIs(t, err, domainconversations.ErrForbiddenSender)
	assert.Nil(t, res)

	reply, err := commands.Dispatch[conversations.AppendMessageCommand, *dto.ChatMessage](ctx, buses.Commands,
		conversations.AppendMessageCommand{ConversationID: conv.ID, SenderID: "owner", Body: "reply", IdempotencyKeyV: "k1"})
	require.NoError(t, err)
	assert.False(t, reply.Duplicate)
	assert.Equal(t, "owner", reply.SenderID)
	assert.Equal(t, "reply", reply.Body)
}

type commitFailingFactory struct {
	memory.Factory
	failures int
}

func (f *commitFailingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Factory.Begin(ctx, opts)
	if err != nil || opts.ReadOnly || f.failures == 0 {
		return unit, err
	}
	f.failures--
	return lostCommit{unit}, nil
}

type lostCommit struct {
	uow.UnitOfWork
}

func (lostCommit) Commit(context.Context) error { return errors.New("commit lost") }

func TestBusesDropEventsOfFailedCommit(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, "conversation.events.v1", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gateway := memory.NewListingGateway()
	_, err := gateway.LoadFixtures(context.Background(), []byte(`[{"id":"L1","owner":"owner"},{"id":"L2","owner":"owner"}]`))
	require.NoError(t, err)
	buses := bootstrap.Build(bootstrap.Deps{
		UoWFactory:  &commitFailingFactory{Factory: memory.Factory{Store: memory.NewChatStore()}, failures: 1},
		Listings:    gateway,
		Outbox:      &memory.Outbox{Publisher: pub},
		Idempotency: memory.NewIdempotencyStore(time.Hour),
	})
	ctx := context.Background()

	_, err = commands.Dispatch[conversations.CreateConversationCommand, *dto.Conversation](ctx, buses.Commands,
		conversations.CreateConversationCommand{ListingID: "L1", RequesterID: "guest"})
	require.Error(t, err)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	conv, err := commands.Dispatch[conversations.CreateConversationCommand, *dto.Conversation](ctx, buses.Commands,
		conversations.CreateConversationCommand{ListingID: "L2", RequesterID: "guest"})
	require.NoError(t, err)
	pub.AssertNumberOfCalls(t, "Publish", 1)
	pub.AssertCalled(t, "Publish", mock.Anything, "conversation.events.v1", conv.ID, mock.Anything, mock.Anything)
}
