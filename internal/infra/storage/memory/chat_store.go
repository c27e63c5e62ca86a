package memory

import (
	"context"
	"sort"
	"sync"

	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

// ChatStore keeps conversations and their message logs behind one lock, so
// an append and its pointer advance are a single critical section.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[domainconversations.ConversationID]*domainconversations.Conversation
	byPair        map[domainconversations.PairKey]domainconversations.ConversationID
	byUser        map[domainlistings.UserID][]domainconversations.ConversationID
	// messages are kept in ascending (CreatedAt, ID) order per conversation.
	messages map[domainconversations.ConversationID][]domainconversations.Message
	byKey    map[string]domainconversations.Message
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[domainconversations.ConversationID]*domainconversations.Conversation),
		byPair:        make(map[domainconversations.PairKey]domainconversations.ConversationID),
		byUser:        make(map[domainlistings.UserID][]domainconversations.ConversationID),
		messages:      make(map[domainconversations.ConversationID][]domainconversations.Message),
		byKey:         make(map[string]domainconversations.Message),
	}
}

func (s *ChatStore) Create(ctx context.Context, conv *domainconversations.Conversation) (domainconversations.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[conv.Key()]; ok {
		return snapshot(s.conversations[id]), false, nil
	}
	stored := snapshot(conv)
	s.conversations[stored.ID] = &stored
	s.byPair[stored.Key()] = stored.ID
	s.byUser[stored.OwnerID] = append(s.byUser[stored.OwnerID], stored.ID)
	if stored.ParticipantID != stored.OwnerID {
		s.byUser[stored.ParticipantID] = append(s.byUser[stored.ParticipantID], stored.ID)
	}
	return stored, true, nil
}

func (s *ChatStore) ByID(ctx context.Context, id domainconversations.ConversationID) (domainconversations.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return domainconversations.Conversation{}, domainconversations.ErrConversationNotFound
	}
	return snapshot(conv), nil
}

func (s *ChatStore) ListForUser(ctx context.Context, user domainlistings.UserID) ([]domainconversations.Conversation, error) {
	s.mu.RLock()
	ids := s.byUser[user]
	out := make([]domainconversations.Conversation, 0, len(ids))
	for _, id := range ids {
		out = append(out, snapshot(s.conversations[id]))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *ChatStore) Append(ctx context.Context, msg domainconversations.Message) (domainconversations.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return domainconversations.Message{}, false, domainconversations.ErrUnknownConversation
	}
	dedupe := ""
	if msg.IdempotencyKey != "" {
		dedupe = string(msg.ConversationID) + "/" + string(msg.SenderID) + "/" + msg.IdempotencyKey
		if prior, ok := s.byKey[dedupe]; ok {
			return prior, true, nil
		}
	}

	log := s.messages[msg.ConversationID]
	idx := sort.Search(len(log), func(i int) bool { return log[i].After(msg) })
	log = append(log, domainconversations.Message{})
	copy(log[idx+1:], log[idx:])
	log[idx] = msg
	s.messages[msg.ConversationID] = log
	if dedupe != "" {
		s.byKey[dedupe] = msg
	}
	conv.Advance(msg)
	return msg, false, nil
}

// LatestFor follows each conversation's pointer. The last element of a log
// is always the pointed-to message.
func (s *ChatStore) LatestFor(ctx context.Context, ids []domainconversations.ConversationID) (map[domainconversations.ConversationID]domainconversations.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domainconversations.ConversationID]domainconversations.Message, len(ids))
	for _, id := range ids {
		conv, ok := s.conversations[id]
		if !ok || !conv.HasMessages() {
			continue
		}
		log := s.messages[id]
		if n := len(log); n > 0 && log[n-1].ID == conv.LastMessageID {
			out[id] = log[n-1]
		}
	}
	return out, nil
}

func (s *ChatStore) Recent(ctx context.Context, id domainconversations.ConversationID, page domainconversations.Page) ([]domainconversations.Message, error) {
	page = page.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[id]; !ok {
		return nil, domainconversations.ErrConversationNotFound
	}
	log := s.messages[id]
	end := len(log)
	if page.Before != "" {
		end = 0
		for i := len(log) - 1; i >= 0; i-- {
			if log[i].ID == page.Before {
				end = i
				break
			}
		}
	}
	out := make([]domainconversations.Message, 0, page.Limit)
	for i := end - 1; i >= 0 && len(out) < page.Limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// snapshot copies conv without its pending events.
func snapshot(conv *domainconversations.Conversation) domainconversations.Conversation {
	return domainconversations.Conversation{
		ID:            conv.ID,
		ListingID:     conv.ListingID,
		OwnerID:       conv.OwnerID,
		ParticipantID: conv.ParticipantID,
		LastMessageID: conv.LastMessageID,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
	}
}

var (
	_ domainconversations.Repository = (*ChatStore)(nil)
	_ domainconversations.MessageLog = (*ChatStore)(nil)
)
