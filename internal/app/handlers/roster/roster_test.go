package roster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingchat/internal/app/handlers/conversations"
	"listingchat/internal/app/handlers/roster"
	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
	"listingchat/internal/infra/storage/memory"
)

func setup(t *testing.T) (*memory.ListingGateway, *memory.Outbox) {
	t.Helper()
	gw := memory.NewListingGateway()
	_, err := gw.LoadFixtures(context.Background(), []byte(`[{"id":"L","owner":"A","participants":["B"]}]`))
	require.NoError(t, err)
	return gw, memory.NewOutbox()
}

func TestAddParticipantOwnerOnlyAndIdempotent(t *testing.T) {
	gw, box := setup(t)
	h := &roster.AddParticipantHandler{Listings: gw, Outbox: box}
	ctx := context.Background()

	res, err := h.Handle(ctx, roster.AddParticipantCommand{ListingID: "L", ActorID: "A", ParticipantID: "C"})
	require.NoError(t, err)
	assert.True(t, res.Added)

	res, err = h.Handle(ctx, roster.AddParticipantCommand{ListingID: "L", ActorID: "A", ParticipantID: "C"})
	require.NoError(t, err)
	assert.False(t, res.Added)

	participants, err := gw.Participants(ctx, "L")
	require.NoError(t, err)
	assert.Equal(t, []domainlistings.UserID{"B", "C"}, participants)

	require.Len(t, box.Pending(), 1)
	assert.Equal(t, "listing.participant_added", box.Pending()[0].Name)
}

func TestAddParticipantRejections(t *testing.T) {
	gw, box := setup(t)
	h := &roster.AddParticipantHandler{Listings: gw, Outbox: box}
	ctx := context.Background()

	_, err := h.Handle(ctx, roster.AddParticipantCommand{ListingID: "L", ActorID: "B", ParticipantID: "C"})
	assert.ErrorIs(t, err, domainlistings.ErrForbidden)

	_, err = h.Handle(ctx, roster.AddParticipantCommand{ListingID: "missing", ActorID: "A", ParticipantID: "C"})
	assert.ErrorIs(t, err, domainlistings.ErrInvalidListing)

	_, err = h.Handle(ctx, roster.AddParticipantCommand{ListingID: "L", ActorID: "A", ParticipantID: ""})
	assert.ErrorIs(t, err, domainlistings.ErrParticipantRequired)

	participants, _ := gw.Participants(ctx, "L")
	assert.Equal(t, []domainlistings.UserID{"B"}, participants)
	assert.Empty(t, box.Pending())
}

func TestRosterAndConversationsStayIndependent(t *testing.T) {
	gw, _ := setup(t)
	store := memory.NewChatStore()
	factory := memory.Factory{Store: store}
	ctx := context.Background()

	add := &roster.AddParticipantHandler{Listings: gw}
	_, err := add.Handle(ctx, roster.AddParticipantCommand{ListingID: "L", ActorID: "A", ParticipantID: "C"})
	require.NoError(t, err)
	convs, err := store.ListForUser(ctx, "C")
	require.NoError(t, err)
	assert.Empty(t, convs, "adding to the roster must not open a conversation")

	create := &conversations.CreateConversationHandler{UoWFactory: factory, Listings: gw}
	offRoster, err := create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "Z"})
	require.NoError(t, err)
	onRoster, err := create.Handle(ctx, conversations.CreateConversationCommand{ListingID: "L", RequesterID: "B"})
	require.NoError(t, err)

	check := &roster.CheckRosterHandler{UoWFactory: factory, Listings: gw}
	status, err := check.Handle(ctx, roster.CheckRosterQuery{ConversationID: offRoster.ID, ViewerID: "A"})
	require.NoError(t, err)
	assert.False(t, status.OnRoster)

	status, err = check.Handle(ctx, roster.CheckRosterQuery{ConversationID: onRoster.ID, ViewerID: "B"})
	require.NoError(t, err)
	assert.True(t, status.OnRoster)

	_, err = check.Handle(ctx, roster.CheckRosterQuery{ConversationID: onRoster.ID, ViewerID: "Z"})
	assert.ErrorIs(t, err, domainconversations.ErrNotParticipant)
}

func TestListParticipants(t *testing.T) {
	gw, _ := setup(t)
	h := &roster.ListParticipantsHandler{Listings: gw}
	res, err := h.Handle(context.Background(), roster.ListParticipantsQuery{ListingID: "L"})
	require.NoError(t, err)
	assert.Equal(t, "A", res.OwnerID)
	assert.Equal(t, []string{"B"}, res.Participants)

	_, err = h.Handle(context.Background(), roster.ListParticipantsQuery{ListingID: "x"})
	assert.ErrorIs(t, err, domainlistings.ErrInvalidListing)
}
