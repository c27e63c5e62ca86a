package roster

import (
	"context"
	"strings"

	"listingchat/internal/app/dto"
	"listingchat/internal/app/policies"
	"listingchat/internal/app/queries"
	domainlistings "listingchat/internal/domain/listings"
)

const listParticipantsKey = "roster.list_participants"

type ListParticipantsQuery struct {
	ListingID string
}

func (ListParticipantsQuery) Key() string { return listParticipantsKey }

type ListParticipantsHandler struct {
	Listings policies.ListingGateway
}

func (h *ListParticipantsHandler) Handle(ctx context.Context, q ListParticipantsQuery) (*dto.ParticipantList, error) {
	listingID := domainlistings.ListingID(strings.TrimSpace(q.ListingID))
	if listingID == "" {
		return nil, domainlistings.ErrInvalidListing
	}
	listing, err := h.Listings.Listing(ctx, listingID)
	if err != nil {
		return nil, policies.GatewayFailure(err)
	}
	return &dto.ParticipantList{
		ListingID:    string(listing.ID),
		OwnerID:      string(listing.Owner),
		Participants: dto.UserIDs(listing.Participants),
	}, nil
}

var _ queries.Handler[ListParticipantsQuery, *dto.ParticipantList] = (*ListParticipantsHandler)(nil)
