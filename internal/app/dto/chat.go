package dto

import (
	"time"

	domainconversations "listingchat/internal/domain/conversations"
	domaininbox "listingchat/internal/domain/inbox"
)

// Conversation describes chat metadata.
type Conversation struct {
	ID            string     `json:"id"`
	ListingID     string     `json:"listing_id"`
	OwnerID       string     `json:"owner_id"`
	ParticipantID string     `json:"participant_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageID string     `json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	// Created is false when an existing conversation was returned.
	Created bool `json:"created"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Duplicate      bool      `json:"duplicate,omitempty"`
}

// MarkReplayed flags a message returned for a repeated idempotency key.
func (m *ChatMessage) MarkReplayed() { m.Duplicate = true }

// ChatMessageList is newest first; NextCursor feeds the next Before.
type ChatMessageList struct {
	Items      []ChatMessage `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// InboxEntry has a nil LatestMessage and State "empty" when the
// conversation has no messages yet.
type InboxEntry struct {
	Conversation  Conversation `json:"conversation"`
	LatestMessage *ChatMessage `json:"latest_message"`
	State         string       `json:"state"`
}

type Inbox struct {
	UserID  string       `json:"user_id"`
	Entries []InboxEntry `json:"entries"`
}

func FromConversation(c domainconversations.Conversation) Conversation {
	out := Conversation{
		ID:            string(c.ID),
		ListingID:     string(c.ListingID),
		OwnerID:       string(c.OwnerID),
		ParticipantID: string(c.ParticipantID),
		CreatedAt:     c.CreatedAt,
		LastMessageID: string(c.LastMessageID),
	}
	if c.HasMessages() {
		at := c.LastMessageAt
		out.LastMessageAt = &at
	}
	return out
}

func FromConversations(items []domainconversations.Conversation) ConversationList {
	out := ConversationList{Items: make([]Conversation, 0, len(items))}
	for _, c := range items {
		out.Items = append(out.Items, FromConversation(c))
	}
	return out
}

func FromMessage(m domainconversations.Message) ChatMessage {
	return ChatMessage{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Body:           m.Body,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
	}
}

// FromMessages maps a newest-first page. A full page carries the oldest id
// as the cursor for the next one.
func FromMessages(items []domainconversations.Message, limit int) ChatMessageList {
	out := ChatMessageList{Items: make([]ChatMessage, 0, len(items))}
	for _, m := range items {
		out.Items = append(out.Items, FromMessage(m))
	}
	if limit > 0 && len(items) == limit {
		out.NextCursor = string(items[len(items)-1].ID)
	}
	return out
}

func FromInbox(user string, entries []domaininbox.Entry) Inbox {
	out := Inbox{UserID: user, Entries: make([]InboxEntry, 0, len(entries))}
	for _, e := range entries {
		entry := InboxEntry{Conversation: FromConversation(e.Conversation), State: string(e.State)}
		if e.LatestMessage != nil {
			msg := FromMessage(*e.LatestMessage)
			entry.LatestMessage = &msg
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}
