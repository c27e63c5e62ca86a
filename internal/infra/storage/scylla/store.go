package scylla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

const maxPointerAttempts = 16

var (
	ErrSessionMissing   = errors.New("scylla: session not initialized")
	ErrPointerContended = errors.New("scylla: last message pointer contended")
)

// epoch marks a conversation without messages; LWT conditions cannot
// compare against an unset column reliably.
var epoch = time.UnixMilli(0).UTC()

// Store implements the conversation repository and message log. Lightweight
// transactions guard the pair registry, idempotency keys and the
// last-message pointer.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	return &Store{session: session, logger: logger}
}

func (s *Store) Create(ctx context.Context, conv *domainconversations.Conversation) (domainconversations.Conversation, bool, error) {
	if s.session == nil {
		return domainconversations.Conversation{}, false, ErrSessionMissing
	}
	prior := map[string]any{}
	applied, err := s.session.Query(`INSERT INTO conversations_by_pair (listing_id, owner_id, participant_id, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		string(conv.ListingID), string(conv.OwnerID), string(conv.ParticipantID), string(conv.ID), conv.CreatedAt).
		WithContext(ctx).
		MapScanCAS(prior)
	if err != nil {
		return domainconversations.Conversation{}, false, fmt.Errorf("claim conversation pair: %w", err)
	}
	stored := domainconversations.Conversation{
		ID:            conv.ID,
		ListingID:     conv.ListingID,
		OwnerID:       conv.OwnerID,
		ParticipantID: conv.ParticipantID,
		CreatedAt:     conv.CreatedAt,
	}
	if !applied {
		stored.ID = domainconversations.ConversationID(asString(prior["conversation_id"]))
		stored.CreatedAt = asTime(prior["created_at"])
	}
	// Both winner and losers materialise the rows, so a winner that died
	// after claiming the pair is repaired by the next caller.
	if err := s.materialise(ctx, stored); err != nil {
		return domainconversations.Conversation{}, false, err
	}
	if !applied {
		current, err := s.ByID(ctx, stored.ID)
		if err != nil {
			return domainconversations.Conversation{}, false, err
		}
		return current, false, nil
	}
	return stored, true, nil
}

func (s *Store) materialise(ctx context.Context, conv domainconversations.Conversation) error {
	if _, err := s.session.Query(`INSERT INTO conversations (id, listing_id, owner_id, participant_id, created_at, last_message_id, last_message_at)
		VALUES (?, ?, ?, ?, ?, '', ?) IF NOT EXISTS`,
		string(conv.ID), string(conv.ListingID), string(conv.OwnerID), string(conv.ParticipantID), conv.CreatedAt, epoch).
		WithContext(ctx).
		MapScanCAS(map[string]any{}); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, user := range []domainlistings.UserID{conv.OwnerID, conv.ParticipantID} {
		batch.Query(`INSERT INTO conversations_by_user (user_id, created_at, conversation_id) VALUES (?, ?, ?)`,
			string(user), conv.CreatedAt, string(conv.ID))
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("index conversation by user: %w", err)
	}
	return nil
}

func (s *Store) ByID(ctx context.Context, id domainconversations.ConversationID) (domainconversations.Conversation, error) {
	if s.session == nil {
		return domainconversations.Conversation{}, ErrSessionMissing
	}
	var row conversationRow
	err := s.session.Query(`SELECT id, listing_id, owner_id, participant_id, created_at, last_message_id, last_message_at FROM conversations WHERE id = ?`, string(id)).
		WithContext(ctx).
		Scan(row.dest()...)
	if errors.Is(err, gocql.ErrNotFound) {
		return domainconversations.Conversation{}, domainconversations.ErrConversationNotFound
	}
	if err != nil {
		return domainconversations.Conversation{}, fmt.Errorf("select conversation: %w", err)
	}
	return row.toAggregate(), nil
}

func (s *Store) ListForUser(ctx context.Context, user domainlistings.UserID) ([]domainconversations.Conversation, error) {
	if s.session == nil {
		return nil, ErrSessionMissing
	}
	iter := s.session.Query(`SELECT conversation_id FROM conversations_by_user WHERE user_id = ?`, string(user)).
		WithContext(ctx).
		Iter()
	var (
		id  string
		ids []string
	)
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list conversations by user: %w", err)
	}
	out := make([]domainconversations.Conversation, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.conversations(ctx, ids)
	if err != nil {
		return nil, err
	}
	// conversations_by_user is clustered newest first; keep that order.
	for _, id := range ids {
		if conv, ok := rows[id]; ok {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (s *Store) conversations(ctx context.Context, ids []string) (map[string]domainconversations.Conversation, error) {
	iter := s.session.Query(`SELECT id, listing_id, owner_id, participant_id, created_at, last_message_id, last_message_at FROM conversations WHERE id IN ?`, ids).
		WithContext(ctx).
		Iter()
	out := make(map[string]domainconversations.Conversation, len(ids))
	var row conversationRow
	for iter.Scan(row.dest()...) {
		out[row.ID] = row.toAggregate()
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("select conversations: %w", err)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, msg domainconversations.Message) (domainconversations.Message, bool, error) {
	if s.session == nil {
		return domainconversations.Message{}, false, ErrSessionMissing
	}
	if _, err := s.ByID(ctx, msg.ConversationID); err != nil {
		if errors.Is(err, domainconversations.ErrConversationNotFound) {
			return domainconversations.Message{}, false, domainconversations.ErrUnknownConversation
		}
		return domainconversations.Message{}, false, err
	}
	stored, duplicate := msg, false
	if msg.IdempotencyKey != "" {
		prior := map[string]any{}
		applied, err := s.session.Query(`INSERT INTO messages_by_key (conversation_id, sender_id, idempotency_key, message_id, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
			string(msg.ConversationID), string(msg.SenderID), msg.IdempotencyKey, string(msg.ID), msg.Body, msg.CreatedAt).
			WithContext(ctx).
			MapScanCAS(prior)
		if err != nil {
			return domainconversations.Message{}, false, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !applied {
			duplicate = true
			stored = domainconversations.Message{
				ID:             domainconversations.MessageID(asString(prior["message_id"])),
				ConversationID: msg.ConversationID,
				SenderID:       msg.SenderID,
				Body:           asString(prior["body"]),
				IdempotencyKey: msg.IdempotencyKey,
				CreatedAt:      asTime(prior["created_at"]),
			}
		}
	}
	// Rewriting a duplicate is an idempotent upsert and repairs a first
	// attempt that stopped after claiming its key.
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO messages (conversation_id, created_at, message_id, sender_id, body, idempotency_key) VALUES (?, ?, ?, ?, ?, ?)`,
		string(stored.ConversationID), stored.CreatedAt, string(stored.ID), string(stored.SenderID), stored.Body, stored.IdempotencyKey)
	batch.Query(`INSERT INTO messages_by_id (conversation_id, message_id, created_at) VALUES (?, ?, ?)`,
		string(stored.ConversationID), string(stored.ID), stored.CreatedAt)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return domainconversations.Message{}, false, fmt.Errorf("insert message: %w", err)
	}
	if err := s.advance(ctx, stored); err != nil {
		return domainconversations.Message{}, false, err
	}
	return stored, duplicate, nil
}

// advance compare-and-sets the pointer until it is at or past msg.
func (s *Store) advance(ctx context.Context, msg domainconversations.Message) error {
	var (
		curID string
		curAt time.Time
	)
	if err := s.session.Query(`SELECT last_message_id, last_message_at FROM conversations WHERE id = ?`, string(msg.ConversationID)).
		WithContext(ctx).
		Scan(&curID, &curAt); err != nil {
		return fmt.Errorf("read last message: %w", err)
	}
	for attempt := 0; attempt < maxPointerAttempts; attempt++ {
		if curID != "" && !domainconversations.Newer(msg.CreatedAt, msg.ID, curAt, domainconversations.MessageID(curID)) {
			return nil
		}
		current := map[string]any{}
		applied, err := s.session.Query(`UPDATE conversations SET last_message_id = ?, last_message_at = ?
			WHERE id = ? IF last_message_id = ? AND last_message_at = ?`,
			string(msg.ID), msg.CreatedAt, string(msg.ConversationID), curID, curAt).
			WithContext(ctx).
			MapScanCAS(current)
		if err != nil {
			return fmt.Errorf("advance last message: %w", err)
		}
		if applied {
			return nil
		}
		curID, curAt = asString(current["last_message_id"]), asTime(current["last_message_at"])
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "last message pointer contended", "conversation_id", msg.ConversationID, "message_id", msg.ID)
	}
	return ErrPointerContended
}

// LatestFor reads the head of each requested partition in one query.
func (s *Store) LatestFor(ctx context.Context, ids []domainconversations.ConversationID) (map[domainconversations.ConversationID]domainconversations.Message, error) {
	out := make(map[domainconversations.ConversationID]domainconversations.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if s.session == nil {
		return nil, ErrSessionMissing
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	iter := s.session.Query(`SELECT conversation_id, created_at, message_id, sender_id, body, idempotency_key FROM messages
		WHERE conversation_id IN ? PER PARTITION LIMIT 1`, raw).
		WithContext(ctx).
		Iter()
	var row messageRow
	for iter.Scan(row.dest()...) {
		msg := row.toMessage()
		out[msg.ConversationID] = msg
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("load latest messages: %w", err)
	}
	return out, nil
}

func (s *Store) Recent(ctx context.Context, id domainconversations.ConversationID, page domainconversations.Page) ([]domainconversations.Message, error) {
	page = page.Normalize()
	if _, err := s.ByID(ctx, id); err != nil {
		return nil, err
	}
	var query *gocql.Query
	if page.Before == "" {
		query = s.session.Query(`SELECT conversation_id, created_at, message_id, sender_id, body, idempotency_key FROM messages
			WHERE conversation_id = ? LIMIT ?`, string(id), page.Limit)
	} else {
		var cursorAt time.Time
		err := s.session.Query(`SELECT created_at FROM messages_by_id WHERE conversation_id = ? AND message_id = ?`, string(id), string(page.Before)).
			WithContext(ctx).
			Scan(&cursorAt)
		if errors.Is(err, gocql.ErrNotFound) {
			return []domainconversations.Message{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve message cursor: %w", err)
		}
		query = s.session.Query(`SELECT conversation_id, created_at, message_id, sender_id, body, idempotency_key FROM messages
			WHERE conversation_id = ? AND (created_at, message_id) < (?, ?) LIMIT ?`, string(id), cursorAt, string(page.Before), page.Limit)
	}
	iter := query.WithContext(ctx).Iter()
	out := make([]domainconversations.Message, 0, page.Limit)
	var row messageRow
	for iter.Scan(row.dest()...) {
		out = append(out, row.toMessage())
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

type conversationRow struct {
	ID, ListingID, OwnerID, ParticipantID string
	CreatedAt                             time.Time
	LastMessageID                         string
	LastMessageAt                         time.Time
}

func (r *conversationRow) dest() []any {
	return []any{&r.ID, &r.ListingID, &r.OwnerID, &r.ParticipantID, &r.CreatedAt, &r.LastMessageID, &r.LastMessageAt}
}

func (r conversationRow) toAggregate() domainconversations.Conversation {
	conv := domainconversations.Conversation{
		ID:            domainconversations.ConversationID(r.ID),
		ListingID:     domainlistings.ListingID(r.ListingID),
		OwnerID:       domainlistings.UserID(r.OwnerID),
		ParticipantID: domainlistings.UserID(r.ParticipantID),
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.LastMessageID != "" {
		conv.LastMessageID = domainconversations.MessageID(r.LastMessageID)
		conv.LastMessageAt = r.LastMessageAt.UTC()
	}
	return conv
}

type messageRow struct {
	ConversationID string
	CreatedAt      time.Time
	ID             string
	SenderID       string
	Body           string
	IdempotencyKey string
}

func (r *messageRow) dest() []any {
	return []any{&r.ConversationID, &r.CreatedAt, &r.ID, &r.SenderID, &r.Body, &r.IdempotencyKey}
}

func (r messageRow) toMessage() domainconversations.Message {
	return domainconversations.Message{
		ID:             domainconversations.MessageID(r.ID),
		ConversationID: domainconversations.ConversationID(r.ConversationID),
		SenderID:       domainlistings.UserID(r.SenderID),
		Body:           r.Body,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t.UTC()
}

var (
	_ domainconversations.Repository = (*Store)(nil)
	_ domainconversations.MessageLog = (*Store)(nil)
)
