// Package inbox holds the read-time projection that pairs each of a user's
// conversations with its newest message.
package inbox

import "listingchat/internal/domain/conversations"

type State string

const (
	// StateEmpty marks a conversation that has no messages yet. It is a
	// normal state, not an error.
	StateEmpty  State = "empty"
	StateActive State = "active"
)

type Entry struct {
	Conversation  conversations.Conversation
	LatestMessage *conversations.Message
	State         State
}

func (e Entry) NoMessagesYet() bool { return e.State == StateEmpty }

// Assemble zips convs with latest, preserving the order of convs. Every
// conversation yields exactly one entry.
func Assemble(convs []conversations.Conversation, latest map[conversations.ConversationID]conversations.Message) []Entry {
	entries := make([]Entry, 0, len(convs))
	for _, conv := range convs {
		entry := Entry{Conversation: conv, State: StateEmpty}
		if msg, ok := latest[conv.ID]; ok {
			m := msg
			entry.LatestMessage = &m
			entry.State = StateActive
		}
		entries = append(entries, entry)
	}
	return entries
}

// IDs returns the conversation ids in order.
func IDs(convs []conversations.Conversation) []conversations.ConversationID {
	out := make([]conversations.ConversationID, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}
