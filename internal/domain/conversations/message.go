package conversations

import (
	"time"

	"listingchat/internal/domain/listings"
)

// Message is immutable once appended. Messages of a conversation are totally
// ordered by (CreatedAt, ID).
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       listings.UserID
	Body           string
	IdempotencyKey string
	CreatedAt      time.Time
}

// After reports whether m sorts after o.
func (m Message) After(o Message) bool {
	return Newer(m.CreatedAt, m.ID, o.CreatedAt, o.ID)
}

// Newer compares two (createdAt, id) ordering keys.
func Newer(at time.Time, id MessageID, thanAt time.Time, thanID MessageID) bool {
	if !at.Equal(thanAt) {
		return at.After(thanAt)
	}
	return id > thanID
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Page selects the newest messages strictly older than Before.
type Page struct {
	Limit  int
	Before MessageID
}

func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > MaxPageLimit {
		p.Limit = DefaultPageLimit
	}
	return p
}
