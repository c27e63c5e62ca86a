package policies

import (
	"context"
	"fmt"

	domainlistings "listingchat/internal/domain/listings"
	"listingchat/internal/domain/shared/errkind"
)

// ListingGateway is the narrow view of the external listing service. Unknown
// listings, and listings without an owner, yield domainlistings.ErrInvalidListing.
type ListingGateway interface {
	ResolveOwner(ctx context.Context, id domainlistings.ListingID) (domainlistings.UserID, error)
	Listing(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error)
	// AddParticipant puts participant on the roster and reports whether it
	// was absent before. Repeated calls are no-ops.
	AddParticipant(ctx context.Context, id domainlistings.ListingID, participant domainlistings.UserID) (bool, error)
	Participants(ctx context.Context, id domainlistings.ListingID) ([]domainlistings.UserID, error)
}

// GatewayFailure keeps classified gateway errors and reports everything else
// as domainlistings.ErrCollaboratorUnavailable.
func GatewayFailure(err error) error {
	if err == nil || errkind.Of(err) != errkind.Internal {
		return err
	}
	return fmt.Errorf("%w: %v", domainlistings.ErrCollaboratorUnavailable, err)
}
