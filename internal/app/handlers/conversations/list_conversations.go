package conversations

import (
	"context"
	"strings"

	"listingchat/internal/app/dto"
	"listingchat/internal/app/handlers/support"
	"listingchat/internal/app/queries"
	"listingchat/internal/app/uow"
	domainlistings "listingchat/internal/domain/listings"
	"listingchat/internal/domain/shared/errkind"
)

const listConversationsKey = "conversations.list_for_user"

var ErrUserRequired = errkind.New(errkind.Validation, "conversations: user id is required")

// ListConversationsQuery lists the conversations UserID owns or joined,
// newest first.
type ListConversationsQuery struct {
	UserID string
}

func (ListConversationsQuery) Key() string { return listConversationsKey }

func (q ListConversationsQuery) Caller() string { return q.UserID }

type ListConversationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) (*dto.ConversationList, error) {
	user := domainlistings.UserID(strings.TrimSpace(q.UserID))
	if user == "" {
		return nil, ErrUserRequired
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	items, err := unit.Conversations().ListForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	out := dto.FromConversations(items)
	return &out, nil
}

var _ queries.Handler[ListConversationsQuery, *dto.ConversationList] = (*ListConversationsHandler)(nil)
