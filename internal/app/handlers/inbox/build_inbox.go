package inbox

import (
	"context"
	"strings"

	"listingchat/internal/app/dto"
	"listingchat/internal/app/handlers/support"
	"listingchat/internal/app/queries"
	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
	domaininbox "listingchat/internal/domain/inbox"
	domainlistings "listingchat/internal/domain/listings"
	"listingchat/internal/domain/shared/errkind"
)

const buildInboxKey = "inbox.build"

var ErrUserRequired = errkind.New(errkind.Validation, "inbox: user id is required")

type BuildInboxQuery struct {
	UserID string
}

func (BuildInboxQuery) Key() string { return buildInboxKey }

func (q BuildInboxQuery) Caller() string { return q.UserID }

// BuildInboxHandler lists the user's conversations, then resolves every
// latest message in a single LatestFor call.
type BuildInboxHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *BuildInboxHandler) Handle(ctx context.Context, q BuildInboxQuery) (*dto.Inbox, error) {
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

	convs, err := unit.Conversations().ListForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	latest := map[domainconversations.ConversationID]domainconversations.Message{}
	if len(convs) > 0 {
		latest, err = unit.Messages().LatestFor(ctx, domaininbox.IDs(convs))
		if err != nil {
			return nil, err
		}
	}
	out := dto.FromInbox(string(user), domaininbox.Assemble(convs, latest))
	return &out, nil
}

var _ queries.Handler[BuildInboxQuery, *dto.Inbox] = (*BuildInboxHandler)(nil)
