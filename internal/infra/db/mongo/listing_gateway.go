package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"listingchat/internal/app/policies"
	domainlistings "listingchat/internal/domain/listings"
)

const listingsCollection = "listings"

// ListingGateway serves the listing projection kept in Mongo by the listing
// event consumer.
type ListingGateway struct {
	col *mongo.Collection
}

func NewListingGateway(db *mongo.Database) *ListingGateway {
	return &ListingGateway{col: db.Collection(listingsCollection)}
}

type listingDocument struct {
	ID           string    `bson:"_id"`
	Owner        string    `bson:"owner_id"`
	Participants []string  `bson:"participants"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (g *ListingGateway) Upsert(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || listing.ID == "" {
		return domainlistings.ErrInvalidListing
	}
	participants := make(bson.A, 0, len(listing.Participants))
	for _, p := range listing.Participants {
		participants = append(participants, string(p))
	}
	set := bson.M{"updated_at": listing.UpdatedAt.UTC()}
	if listing.Owner != "" {
		set["owner_id"] = string(listing.Owner)
	}
	update := bson.M{
		"$set":      set,
		"$addToSet": bson.M{"participants": bson.M{"$each": participants}},
	}
	if _, err := g.col.UpdateByID(ctx, string(listing.ID), update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

func (g *ListingGateway) Remove(ctx context.Context, id domainlistings.ListingID) error {
	if _, err := g.col.DeleteOne(ctx, bson.M{"_id": string(id)}); err != nil {
		return fmt.Errorf("remove listing: %w", err)
	}
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
	var doc listingDocument
	if err := g.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrInvalidListing
		}
		return nil, fmt.Errorf("find listing: %w", err)
	}
	if doc.Owner == "" {
		return nil, domainlistings.ErrInvalidListing
	}
	listing := &domainlistings.Listing{
		ID:        domainlistings.ListingID(doc.ID),
		Owner:     domainlistings.UserID(doc.Owner),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	for _, p := range doc.Participants {
		listing.Participants = append(listing.Participants, domainlistings.UserID(p))
	}
	return listing, nil
}

// AddParticipant filters on the participant being absent so the modified
// count tells whether this call added it.
func (g *ListingGateway) AddParticipant(ctx context.Context, id domainlistings.ListingID, participant domainlistings.UserID) (bool, error) {
	res, err := g.col.UpdateOne(ctx,
		bson.M{"_id": string(id), "participants": bson.M{"$ne": string(participant)}},
		bson.M{
			"$push": bson.M{"participants": string(participant)},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("add participant: %w", err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}
	if _, err := g.Listing(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (g *ListingGateway) Participants(ctx context.Context, id domainlistings.ListingID) ([]domainlistings.UserID, error) {
	listing, err := g.Listing(ctx, id)
	if err != nil {
		return nil, err
	}
	return listing.Participants, nil
}

var _ policies.ListingGateway = (*ListingGateway)(nil)
