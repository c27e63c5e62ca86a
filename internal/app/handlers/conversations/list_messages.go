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

const listMessagesKey = "conversations.list_messages"

// ListMessagesQuery pages through a conversation newest first. Before is the
// id of the oldest message already seen.
type ListMessagesQuery struct {
	ConversationID string
	ViewerID       string
	Limit          int
	Before         string
}

func (ListMessagesQuery) Key() string { return listMessagesKey }

func (q ListMessagesQuery) Caller() string { return q.ViewerID }

type ListMessagesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListMessagesHandler) Handle(ctx context.Context, q ListMessagesQuery) (*dto.ChatMessageList, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	conv, err := unit.Conversations().ByID(ctx, domainconversations.ConversationID(strings.TrimSpace(q.ConversationID)))
	if err != nil {
		return nil, err
	}
	if !conv.HasParty(domainlistings.UserID(strings.TrimSpace(q.ViewerID))) {
		return nil, domainconversations.ErrNotParticipant
	}

	page := domainconversations.Page{
		Limit:  q.Limit,
		Before: domainconversations.MessageID(strings.TrimSpace(q.Before)),
	}.Normalize()
	items, err := unit.Messages().Recent(ctx, conv.ID, page)
	if err != nil {
		return nil, err
	}
	out := dto.FromMessages(items, page.Limit)
	return &out, nil
}

var _ queries.Handler[ListMessagesQuery, *dto.ChatMessageList] = (*ListMessagesHandler)(nil)
