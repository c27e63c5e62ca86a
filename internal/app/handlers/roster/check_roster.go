package roster

import (
	"context"
	"strings"

	"listingchat/internal/app/dto"
	"listingchat/internal/app/handlers/support"
	"listingchat/internal/app/policies"
	"listingchat/internal/app/queries"
	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

const checkRosterKey = "roster.check"

// CheckRosterQuery reports whether a conversation's participant is on its
// listing's roster. The answer is informational; conversations never depend
// on roster membership.
type CheckRosterQuery struct {
	ConversationID string
	ViewerID       string
}

func (CheckRosterQuery) Key() string { return checkRosterKey }

func (q CheckRosterQuery) Caller() string { return q.ViewerID }

type CheckRosterHandler struct {
	UoWFactory uow.UoWFactory
	Listings   policies.ListingGateway
}

func (h *CheckRosterHandler) Handle(ctx context.Context, q CheckRosterQuery) (*dto.RosterStatus, error) {
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

	roster, err := h.Listings.Participants(ctx, conv.ListingID)
	if err != nil {
		return nil, policies.GatewayFailure(err)
	}
	onRoster := false
	for _, id := range roster {
		if id == conv.ParticipantID {
			onRoster = true
			break
		}
	}
	return &dto.RosterStatus{
		ConversationID: string(conv.ID),
		ListingID:      string(conv.ListingID),
		ParticipantID:  string(conv.ParticipantID),
		OnRoster:       onRoster,
	}, nil
}

var _ queries.Handler[CheckRosterQuery, *dto.RosterStatus] = (*CheckRosterHandler)(nil)
