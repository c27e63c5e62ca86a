package conversations

import (
	"context"
	"strings"

	"listingchat/internal/app/dto"
	"listingchat/internal/app/handlers/support"
	"listingchat/internal/app/queries"
	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

const getConversationKey = "conversations.get"

// GetConversationQuery loads one conversation. When ViewerID is set the
// viewer must be one of its two parties.
type GetConversationQuery struct {
	ConversationID string
	ViewerID       string
}

func (GetConversationQuery) Key() string { return getConversationKey }

type GetConversationHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetConversationHandler) Handle(ctx context.Context, q GetConversationQuery) (*dto.Conversation, error) {
	id := domainconversations.ConversationID(strings.TrimSpace(q.ConversationID))
	if id == "" {
		return nil, domainconversations.ErrConversationNotFound
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	conv, err := unit.Conversations().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer := domainlistings.UserID(strings.TrimSpace(q.ViewerID)); viewer != "" && !conv.HasParty(viewer) {
		return nil, domainconversations.ErrNotParticipant
	}
	out := dto.FromConversation(conv)
	return &out, nil
}

var _ queries.Handler[GetConversationQuery, *dto.Conversation] = (*GetConversationHandler)(nil)
