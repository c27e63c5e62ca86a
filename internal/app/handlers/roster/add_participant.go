package roster

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/dto"
	"listingchat/internal/app/outbox"
	"listingchat/internal/app/policies"
	domainlistings "listingchat/internal/domain/listings"
)

const addParticipantKey = "roster.add_participant"

// AddParticipantCommand puts ParticipantID on the roster of ListingID. Only
// the listing owner may do so. It never opens a conversation.
type AddParticipantCommand struct {
	ListingID     string
	ActorID       string
	ParticipantID string
}

func (AddParticipantCommand) Key() string { return addParticipantKey }

func (c AddParticipantCommand) Caller() string { return c.ActorID }

func (c AddParticipantCommand) Validate() error {
	if strings.TrimSpace(c.ListingID) == "" {
		return domainlistings.ErrInvalidListing
	}
	if strings.TrimSpace(c.ParticipantID) == "" {
		return domainlistings.ErrParticipantRequired
	}
	return nil
}

type AddParticipantHandler struct {
	Listings policies.ListingGateway
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Clock    func() time.Time
	Logger   *slog.Logger
}

func (h *AddParticipantHandler) Handle(ctx context.Context, cmd AddParticipantCommand) (*dto.RosterChange, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	listingID := domainlistings.ListingID(strings.TrimSpace(cmd.ListingID))
	participant := domainlistings.UserID(strings.TrimSpace(cmd.ParticipantID))

	listing, err := h.Listings.Listing(ctx, listingID)
	if err != nil {
		return nil, policies.GatewayFailure(err)
	}
	// The ownership guard runs on the snapshot before the gateway is asked
	// to mutate anything.
	changed, err := listing.AddParticipant(domainlistings.UserID(strings.TrimSpace(cmd.ActorID)), participant, h.now())
	if err != nil {
		return nil, err
	}
	out := &dto.RosterChange{ListingID: string(listingID), ParticipantID: string(participant)}
	if !changed {
		return out, nil
	}

	added, err := h.Listings.AddParticipant(ctx, listingID, participant)
	if err != nil {
		return nil, policies.GatewayFailure(err)
	}
	out.Added = added
	if !added {
		return out, nil
	}
	enc := h.Encoder
	if enc == nil {
		enc = outbox.JSONEventEncoder{}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, enc, listing.Drain()); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "participant added", "listing_id", listingID, "participant_id", participant)
	}
	return out, nil
}

func (h *AddParticipantHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

var _ commands.Handler[AddParticipantCommand, *dto.RosterChange] = (*AddParticipantHandler)(nil)
