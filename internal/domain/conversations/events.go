package conversations

import (
	"time"

	"listingchat/internal/domain/listings"
)

type ConversationStartedEvent struct {
	ConversationID ConversationID     `json:"conversation_id"`
	ListingID      listings.ListingID `json:"listing_id"`
	OwnerID        listings.UserID    `json:"owner_id"`
	ParticipantID  listings.UserID    `json:"participant_id"`
	At             time.Time          `json:"at"`
}

func (e ConversationStartedEvent) EventName() string     { return "conversation.started" }
func (e ConversationStartedEvent) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationStartedEvent) OccurredAt() time.Time { return e.At }

type MessageAppendedEvent struct {
	ConversationID ConversationID  `json:"conversation_id"`
	MessageID      MessageID       `json:"message_id"`
	SenderID       listings.UserID `json:"sender_id"`
	At             time.Time       `json:"at"`
}

func (e MessageAppendedEvent) EventName() string     { return "conversation.message_appended" }
func (e MessageAppendedEvent) AggregateID() string   { return string(e.ConversationID) }
func (e MessageAppendedEvent) OccurredAt() time.Time { return e.At }
