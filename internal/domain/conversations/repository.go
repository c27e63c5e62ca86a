package conversations

import (
	"context"

	"listingchat/internal/domain/listings"
)

// Repository owns conversation identity and the one-per-PairKey invariant.
type Repository interface {
	// Create inserts conv unless a conversation with the same PairKey exists,
	// in which case the stored one is returned with created=false. Racing
	// callers for one key all observe the same conversation.
	Create(ctx context.Context, conv *Conversation) (stored Conversation, created bool, err error)
	ByID(ctx context.Context, id ConversationID) (Conversation, error)
	// ListForUser returns conversations where user is owner or participant,
	// newest first with ties broken by descending id.
	ListForUser(ctx context.Context, user listings.UserID) ([]Conversation, error)
}

// MessageLog is the append-only per-conversation message sequence.
type MessageLog interface {
	// Append persists msg and advances its conversation's last-message
	// pointer. A repeated IdempotencyKey from the same sender returns the
	// first message with duplicate=true.
	Append(ctx context.Context, msg Message) (stored Message, duplicate bool, err error)
	// LatestFor resolves the newest message for each id. Conversations
	// without messages are absent from the map.
	LatestFor(ctx context.Context, ids []ConversationID) (map[ConversationID]Message, error)
	Recent(ctx context.Context, id ConversationID, page Page) ([]Message, error)
}
