package conversations

import (
	"strings"
	"time"

	"listingchat/internal/domain/listings"
	"listingchat/internal/domain/shared/errkind"
	"listingchat/internal/domain/shared/events"
)

var (
	ErrPairingIncomplete         = errkind.New(errkind.Validation, "conversations: listing, owner and participant are required")
	ErrSelfConversationForbidden = errkind.New(errkind.Validation, "conversations: owner cannot open a conversation about their own listing")
	ErrForbiddenSender           = errkind.New(errkind.Forbidden, "conversations: sender is not a party to the conversation")
	ErrNotParticipant            = errkind.New(errkind.Forbidden, "conversations: viewer is not a party to the conversation")
	ErrEmptyBody                 = errkind.New(errkind.Validation, "conversations: message body is required")
	ErrConversationNotFound      = errkind.New(errkind.NotFound, "conversations: conversation not found")
	ErrUnknownConversation       = errkind.New(errkind.NotFound, "conversations: message targets an unknown conversation")
)

type ConversationID string

type MessageID string

// PairKey is the natural key of a conversation. At most one conversation
// exists per key.
type PairKey struct {
	ListingID     listings.ListingID
	OwnerID       listings.UserID
	ParticipantID listings.UserID
}

func (k PairKey) String() string {
	return string(k.ListingID) + "|" + string(k.OwnerID) + "|" + string(k.ParticipantID)
}

// Conversation is a private thread between a listing owner and one
// interested party. LastMessageID/LastMessageAt mirror the newest message in
// the log and only ever move forward.
type Conversation struct {
	ID            ConversationID
	ListingID     listings.ListingID
	OwnerID       listings.UserID
	ParticipantID listings.UserID
	LastMessageID MessageID
	LastMessageAt time.Time
	CreatedAt     time.Time
	events.EventRecorder
}

type StartParams struct {
	ID            ConversationID
	ListingID     listings.ListingID
	OwnerID       listings.UserID
	ParticipantID listings.UserID
	Now           time.Time
}

// Start builds a new conversation and records ConversationStartedEvent.
func Start(params StartParams) (*Conversation, error) {
	listingID := listings.ListingID(strings.TrimSpace(string(params.ListingID)))
	owner := listings.UserID(strings.TrimSpace(string(params.OwnerID)))
	participant := listings.UserID(strings.TrimSpace(string(params.ParticipantID)))
	if listingID == "" || owner == "" || participant == "" || params.ID == "" {
		return nil, ErrPairingIncomplete
	}
	if owner == participant {
		return nil, ErrSelfConversationForbidden
	}
	now := Timestamp(params.Now)
	c := &Conversation{
		ID:            params.ID,
		ListingID:     listingID,
		OwnerID:       owner,
		ParticipantID: participant,
		CreatedAt:     now,
	}
	c.Record(ConversationStartedEvent{
		ConversationID: c.ID,
		ListingID:      c.ListingID,
		OwnerID:        c.OwnerID,
		ParticipantID:  c.ParticipantID,
		At:             now,
	})
	return c, nil
}

func (c Conversation) Key() PairKey {
	return PairKey{ListingID: c.ListingID, OwnerID: c.OwnerID, ParticipantID: c.ParticipantID}
}

func (c Conversation) HasParty(user listings.UserID) bool {
	return user != "" && (user == c.OwnerID || user == c.ParticipantID)
}

func (c Conversation) HasMessages() bool {
	return c.LastMessageID != ""
}

// Accepts reports whether m would advance the last-message pointer.
func (c Conversation) Accepts(m Message) bool {
	if !c.HasMessages() {
		return true
	}
	return Newer(m.CreatedAt, m.ID, c.LastMessageAt, c.LastMessageID)
}

// Advance moves the pointer to m when m is newer. It reports whether it moved.
func (c *Conversation) Advance(m Message) bool {
	if !c.Accepts(m) {
		return false
	}
	c.LastMessageID = m.ID
	c.LastMessageAt = m.CreatedAt
	return true
}

type ComposeParams struct {
	ID             MessageID
	SenderID       listings.UserID
	Body           string
	IdempotencyKey string
	Now            time.Time
}

// Compose prepares a message from one of the two parties and records
// MessageAppendedEvent. Persisting it is the message log's job.
func (c *Conversation) Compose(params ComposeParams) (Message, error) {
	if !c.HasParty(params.SenderID) {
		return Message{}, ErrForbiddenSender
	}
	if strings.TrimSpace(params.Body) == "" {
		return Message{}, ErrEmptyBody
	}
	msg := Message{
		ID:             params.ID,
		ConversationID: c.ID,
		SenderID:       params.SenderID,
		Body:           params.Body,
		IdempotencyKey: strings.TrimSpace(params.IdempotencyKey),
		CreatedAt:      Timestamp(params.Now),
	}
	c.Record(MessageAppendedEvent{
		ConversationID: c.ID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		At:             msg.CreatedAt,
	})
	return msg, nil
}

// Timestamp normalises t to the UTC millisecond precision every backend can
// store without rounding.
func Timestamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Millisecond)
}
