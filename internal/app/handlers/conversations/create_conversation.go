package conversations

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/dto"
	"listingchat/internal/app/handlers/support"
	"listingchat/internal/app/outbox"
	"listingchat/internal/app/policies"
	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

const createConversationKey = "conversations.create"

// CreateConversationCommand opens, or returns the existing, conversation
// between RequesterID and the owner of ListingID.
type CreateConversationCommand struct {
	ListingID   string
	RequesterID string
}

func (CreateConversationCommand) Key() string { return createConversationKey }

func (c CreateConversationCommand) Caller() string { return c.RequesterID }

func (c CreateConversationCommand) Validate() error {
	if strings.TrimSpace(c.ListingID) == "" {
		return domainlistings.ErrInvalidListing
	}
	if strings.TrimSpace(c.RequesterID) == "" {
		return domainconversations.ErrPairingIncomplete
	}
	return nil
}

type CreateConversationHandler struct {
	UoWFactory uow.UoWFactory
	Listings   policies.ListingGateway
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	IDs        func() string
	Clock      func() time.Time
	Logger     *slog.Logger
}

func (h *CreateConversationHandler) Handle(ctx context.Context, cmd CreateConversationCommand) (*dto.Conversation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	listingID := domainlistings.ListingID(strings.TrimSpace(cmd.ListingID))
	requester := domainlistings.UserID(strings.TrimSpace(cmd.RequesterID))

	owner, err := h.Listings.ResolveOwner(ctx, listingID)
	if err != nil {
		return nil, policies.GatewayFailure(err)
	}
	if owner == "" {
		return nil, domainlistings.ErrInvalidListing
	}
	if owner == requester {
		return nil, domainconversations.ErrSelfConversationForbidden
	}

	conv, err := domainconversations.Start(domainconversations.StartParams{
		ID:            domainconversations.ConversationID(newID(h.IDs)),
		ListingID:     listingID,
		OwnerID:       owner,
		ParticipantID: requester,
		Now:           now(h.Clock),
	})
	if err != nil {
		return nil, err
	}

	unit, ctx, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer unit.Finish(ctx)

	stored, created, err := unit.Conversations().Create(ctx, conv)
	if err != nil {
		return nil, err
	}
	if created {
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, encoderOrDefault(h.Encoder), conv.Drain()); err != nil {
			return nil, err
		}
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}
	if created && h.Logger != nil {
		h.Logger.InfoContext(ctx, "conversation started",
			"conversation_id", stored.ID, "listing_id", stored.ListingID, "participant_id", stored.ParticipantID)
	}

	out := dto.FromConversation(stored)
	out.Created = created
	return &out, nil
}

var _ commands.Handler[CreateConversationCommand, *dto.Conversation] = (*CreateConversationHandler)(nil)
