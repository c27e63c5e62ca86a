package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

const conversationsCollection = "conversations"

// ConversationRepository relies on a unique index over the pair key, so a
// losing concurrent insert re-reads the winner instead of failing.
type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection(conversationsCollection)}
}

func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "listing_id", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "participant_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pair"),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "participant_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
	})
	return err
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domainconversations.Conversation) (domainconversations.Conversation, bool, error) {
	doc := newConversationDocument(conv)
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return domainconversations.Conversation{}, false, fmt.Errorf("insert conversation: %w", err)
		}
		existing, err := r.byPair(ctx, conv.Key())
		if err != nil {
			return domainconversations.Conversation{}, false, err
		}
		return existing, false, nil
	}
	return doc.toAggregate(), true, nil
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainconversations.ConversationID) (domainconversations.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConversationRepository) ListForUser(ctx context.Context, user domainlistings.UserID) ([]domainconversations.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"owner_id": string(user)},
		bson.M{"participant_id": string(user)},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	out := make([]domainconversations.Conversation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

// advance moves the last-message pointer to msg only if msg is newer than
// the stored pointer. A non-match means a newer message already won.
func (r *ConversationRepository) advance(ctx context.Context, msg domainconversations.Message) error {
	filter := bson.M{
		"_id": string(msg.ConversationID),
		"$or": bson.A{
			bson.M{"last_message_at": nil},
			bson.M{"last_message_at": bson.M{"$lt": msg.CreatedAt}},
			bson.M{"last_message_at": msg.CreatedAt, "last_message_id": bson.M{"$lt": string(msg.ID)}},
		},
	}
	update := bson.M{"$set": bson.M{"last_message_id": string(msg.ID), "last_message_at": msg.CreatedAt}}
	if _, err := r.col.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("advance last message: %w", err)
	}
	return nil
}

// pointers returns the last message id of each listed conversation that has one.
func (r *ConversationRepository) pointers(ctx context.Context, ids []domainconversations.ConversationID) (map[domainconversations.ConversationID]domainconversations.MessageID, error) {
	raw := make(bson.A, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	filter := bson.M{"_id": bson.M{"$in": raw}, "last_message_id": bson.M{"$nin": bson.A{nil, ""}}}
	opts := options.Find().SetProjection(bson.M{"last_message_id": 1})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("load pointers: %w", err)
	}
	var docs []struct {
		ID            string `bson:"_id"`
		LastMessageID string `bson:"last_message_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode pointers: %w", err)
	}
	out := make(map[domainconversations.ConversationID]domainconversations.MessageID, len(docs))
	for _, d := range docs {
		out[domainconversations.ConversationID(d.ID)] = domainconversations.MessageID(d.LastMessageID)
	}
	return out, nil
}

func (r *ConversationRepository) byPair(ctx context.Context, key domainconversations.PairKey) (domainconversations.Conversation, error) {
	return r.findOne(ctx, bson.M{
		"listing_id":     string(key.ListingID),
		"owner_id":       string(key.OwnerID),
		"participant_id": string(key.ParticipantID),
	})
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (domainconversations.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainconversations.Conversation{}, domainconversations.ErrConversationNotFound
		}
		return domainconversations.Conversation{}, fmt.Errorf("find conversation: %w", err)
	}
	return doc.toAggregate(), nil
}

type conversationDocument struct {
	ID            string     `bson:"_id"`
	ListingID     string     `bson:"listing_id"`
	OwnerID       string     `bson:"owner_id"`
	ParticipantID string     `bson:"participant_id"`
	LastMessageID string     `bson:"last_message_id,omitempty"`
	LastMessageAt *time.Time `bson:"last_message_at"`
	CreatedAt     time.Time  `bson:"created_at"`
}

func newConversationDocument(c *domainconversations.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:            string(c.ID),
		ListingID:     string(c.ListingID),
		OwnerID:       string(c.OwnerID),
		ParticipantID: string(c.ParticipantID),
		LastMessageID: string(c.LastMessageID),
		CreatedAt:     c.CreatedAt,
	}
	if c.HasMessages() {
		at := c.LastMessageAt
		doc.LastMessageAt = &at
	}
	return doc
}

func (d conversationDocument) toAggregate() domainconversations.Conversation {
	conv := domainconversations.Conversation{
		ID:            domainconversations.ConversationID(d.ID),
		ListingID:     domainlistings.ListingID(d.ListingID),
		OwnerID:       domainlistings.UserID(d.OwnerID),
		ParticipantID: domainlistings.UserID(d.ParticipantID),
		LastMessageID: domainconversations.MessageID(d.LastMessageID),
		CreatedAt:     d.CreatedAt.UTC(),
	}
	if d.LastMessageAt != nil {
		conv.LastMessageAt = d.LastMessageAt.UTC()
	}
	return conv
}

var _ domainconversations.Repository = (*ConversationRepository)(nil)
