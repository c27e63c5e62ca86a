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

const messagesCollection = "messages"

// MessageLog stores messages in their own collection and keeps the
// conversation pointer current through ConversationRepository.
type MessageLog struct {
	col           *mongo.Collection
	conversations *ConversationRepository
}

func NewMessageLog(db *mongo.Database, conversations *ConversationRepository) *MessageLog {
	return &MessageLog{col: db.Collection(messagesCollection), conversations: conversations}
}

func (l *MessageLog) EnsureIndexes(ctx context.Context) error {
	_, err := l.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_sender_idempotency_key").
				SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
	})
	return err
}

func (l *MessageLog) Append(ctx context.Context, msg domainconversations.Message) (domainconversations.Message, bool, error) {
	if _, err := l.conversations.ByID(ctx, msg.ConversationID); err != nil {
		if errors.Is(err, domainconversations.ErrConversationNotFound) {
			return domainconversations.Message{}, false, domainconversations.ErrUnknownConversation
		}
		return domainconversations.Message{}, false, err
	}
	if _, err := l.col.InsertOne(ctx, newMessageDocument(msg)); err != nil {
		if msg.IdempotencyKey == "" || !mongo.IsDuplicateKeyError(err) {
			return domainconversations.Message{}, false, fmt.Errorf("insert message: %w", err)
		}
		prior, err := l.findOne(ctx, bson.M{
			"conversation_id": string(msg.ConversationID),
			"sender_id":       string(msg.SenderID),
			"idempotency_key": msg.IdempotencyKey,
		})
		if err != nil {
			return domainconversations.Message{}, false, err
		}
		// The first attempt may have died between insert and pointer update.
		if err := l.conversations.advance(ctx, prior); err != nil {
			return domainconversations.Message{}, false, err
		}
		return prior, true, nil
	}
	if err := l.conversations.advance(ctx, msg); err != nil {
		return domainconversations.Message{}, false, err
	}
	return msg, false, nil
}

// LatestFor reads the requested pointers, then the pointed-to messages: two
// indexed queries regardless of log size.
func (l *MessageLog) LatestFor(ctx context.Context, ids []domainconversations.ConversationID) (map[domainconversations.ConversationID]domainconversations.Message, error) {
	out := make(map[domainconversations.ConversationID]domainconversations.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	pointers, err := l.conversations.pointers(ctx, ids)
	if err != nil || len(pointers) == 0 {
		return out, err
	}
	msgIDs := make(bson.A, 0, len(pointers))
	for _, id := range pointers {
		msgIDs = append(msgIDs, string(id))
	}
	cur, err := l.col.Find(ctx, bson.M{"_id": bson.M{"$in": msgIDs}})
	if err != nil {
		return nil, fmt.Errorf("load latest messages: %w", err)
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode latest messages: %w", err)
	}
	for _, doc := range docs {
		msg := doc.toMessage()
		if pointers[msg.ConversationID] == msg.ID {
			out[msg.ConversationID] = msg
		}
	}
	return out, nil
}

func (l *MessageLog) Recent(ctx context.Context, id domainconversations.ConversationID, page domainconversations.Page) ([]domainconversations.Message, error) {
	page = page.Normalize()
	if _, err := l.conversations.ByID(ctx, id); err != nil {
		return nil, err
	}
	filter := bson.M{"conversation_id": string(id)}
	if page.Before != "" {
		cursor, err := l.findOne(ctx, bson.M{"_id": string(page.Before), "conversation_id": string(id)})
		if errors.Is(err, errCursorNotFound) {
			return []domainconversations.Message{}, nil
		}
		if err != nil {
			return nil, err
		}
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": cursor.CreatedAt}},
			bson.M{"created_at": cursor.CreatedAt, "_id": bson.M{"$lt": string(cursor.ID)}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(page.Limit))
	cur, err := l.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]domainconversations.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toMessage())
	}
	return out, nil
}

var errCursorNotFound = errors.New("mongo: message cursor not found")

func (l *MessageLog) findOne(ctx context.Context, filter bson.M) (domainconversations.Message, error) {
	var doc messageDocument
	if err := l.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainconversations.Message{}, errCursorNotFound
		}
		return domainconversations.Message{}, fmt.Errorf("find message: %w", err)
	}
	return doc.toMessage(), nil
}

type messageDocument struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	Body           string    `bson:"body"`
	IdempotencyKey string    `bson:"idempotency_key,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

func newMessageDocument(m domainconversations.Message) messageDocument {
	return messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Body:           m.Body,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
	}
}

func (d messageDocument) toMessage() domainconversations.Message {
	return domainconversations.Message{
		ID:             domainconversations.MessageID(d.ID),
		ConversationID: domainconversations.ConversationID(d.ConversationID),
		SenderID:       domainlistings.UserID(d.SenderID),
		Body:           d.Body,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

var _ domainconversations.MessageLog = (*MessageLog)(nil)
