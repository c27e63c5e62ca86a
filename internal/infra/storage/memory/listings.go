package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"listingchat/internal/app/policies"
	domainlistings "listingchat/internal/domain/listings"
)

// ListingGateway is an in-process stand-in for the listing service, seeded
// from fixtures or fed by the listing event projector.
type ListingGateway struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingGateway() *ListingGateway {
	return &ListingGateway{items: make(map[domainlistings.ListingID]*domainlistings.Listing)}
}

// ListingFixture is one entry of a JSON fixtures file.
type ListingFixture struct {
	ID           string   `json:"id"`
	Owner        string   `json:"owner"`
	Participants []string `json:"participants"`
}

// LoadFixtures parses a JSON array of ListingFixture and upserts each
// entry. It returns the number of listings loaded.
func (g *ListingGateway) LoadFixtures(ctx context.Context, raw []byte) (int, error) {
	var fixtures []ListingFixture
	if err := json.Unmarshal(raw, &fixtures); err != nil {
		return 0, fmt.Errorf("decode listing fixtures: %w", err)
	}
	for i, fx := range fixtures {
		if strings.TrimSpace(fx.ID) == "" || strings.TrimSpace(fx.Owner) == "" {
			return i, fmt.Errorf("listing fixture %d: id and owner are required", i)
		}
		listing := &domainlistings.Listing{
			ID:        domainlistings.ListingID(fx.ID),
			Owner:     domainlistings.UserID(fx.Owner),
			UpdatedAt: time.Now().UTC(),
		}
		for _, p := range fx.Participants {
			if p = strings.TrimSpace(p); p != "" && !listing.HasParticipant(domainlistings.UserID(p)) {
				listing.Participants = append(listing.Participants, domainlistings.UserID(p))
			}
		}
		if err := g.Upsert(ctx, listing); err != nil {
			return i, err
		}
	}
	return len(fixtures), nil
}

// Upsert replaces the owner of a listing, when one is given, and merges its
// roster.
func (g *ListingGateway) Upsert(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || listing.ID == "" {
		return domainlistings.ErrInvalidListing
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok := g.items[listing.ID]
	if !ok {
		g.items[listing.ID] = listing.Clone()
		return nil
	}
	if listing.Owner != "" {
		current.Owner = listing.Owner
	}
	current.UpdatedAt = listing.UpdatedAt
	for _, p := range listing.Participants {
		if !current.HasParticipant(p) {
			current.Participants = append(current.Participants, p)
		}
	}
	return nil
}

// Remove drops a listing. Later lookups report ErrInvalidListing.
func (g *ListingGateway) Remove(ctx context.Context, id domainlistings.ListingID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.items, id)
	return nil
}

func (g *ListingGateway) ResolveOwner(ctx context.Context, id domainlistings.ListingID) (domainlistings.UserID, error) {
	listing, err := g.Listing(ctx, id)
	if err != nil {
		return "", err
	}
	return listing.Owner, nil
}

func (g *ListingGateway) Listing(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	listing, ok := g.items[id]
	if !ok || listing.Owner == "" {
		return nil, domainlistings.ErrInvalidListing
	}
	return listing.Clone(), nil
}

func (g *ListingGateway) AddParticipant(ctx context.Context, id domainlistings.ListingID, participant domainlistings.UserID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	listing, ok := g.items[id]
	if !ok {
		return false, domainlistings.ErrInvalidListing
	}
	if listing.HasParticipant(participant) {
		return false, nil
	}
	listing.Participants = append(listing.Participants, participant)
	listing.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (g *ListingGateway) Participants(ctx context.Context, id domainlistings.ListingID) ([]domainlistings.UserID, error) {
	listing, err := g.Listing(ctx, id)
	if err != nil {
		return nil, err
	}
	return listing.Participants, nil
}

var _ policies.ListingGateway = (*ListingGateway)(nil)
