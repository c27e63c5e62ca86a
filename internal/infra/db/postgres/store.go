package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

// Store implements the conversation repository and the message log over
// one querier, usually the transaction of a Unit.
type Store struct {
	q querier
}

func NewStore(q querier) *Store {
	return &Store{q: q}
}

const conversationColumns = `id, listing_id, owner_id, participant_id, created_at, last_message_id, last_message_at`

func (s *Store) Create(ctx context.Context, conv *domainconversations.Conversation) (domainconversations.Conversation, bool, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO conversations (id, listing_id, owner_id, participant_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id, owner_id, participant_id) DO NOTHING
		RETURNING `+conversationColumns,
		string(conv.ID), string(conv.ListingID), string(conv.OwnerID), string(conv.ParticipantID), conv.CreatedAt)
	stored, err := scanConversation(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domainconversations.Conversation{}, false, fmt.Errorf("insert conversation: %w", err)
	}
	row = s.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE listing_id = $1 AND owner_id = $2 AND participant_id = $3`,
		string(conv.ListingID), string(conv.OwnerID), string(conv.ParticipantID))
	existing, err := scanConversation(row)
	if err != nil {
		return domainconversations.Conversation{}, false, fmt.Errorf("select conversation by pair: %w", err)
	}
	return existing, false, nil
}

func (s *Store) ByID(ctx context.Context, id domainconversations.ConversationID) (domainconversations.Conversation, error) {
	row := s.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, string(id))
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domainconversations.Conversation{}, domainconversations.ErrConversationNotFound
	}
	if err != nil {
		return domainconversations.Conversation{}, fmt.Errorf("select conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) ListForUser(ctx context.Context, user domainlistings.UserID) ([]domainconversations.Conversation, error) {
	rows, err := s.q.Query(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE owner_id = $1 OR participant_id = $1
		ORDER BY created_at DESC, id DESC`, string(user))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	out := make([]domainconversations.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

const messageColumns = `id, conversation_id, sender_id, body, idempotency_key, created_at`

func (s *Store) Append(ctx context.Context, msg domainconversations.Message) (domainconversations.Message, bool, error) {
	if _, err := s.ByID(ctx, msg.ConversationID); err != nil {
		if errors.Is(err, domainconversations.ErrConversationNotFound) {
			return domainconversations.Message{}, false, domainconversations.ErrUnknownConversation
		}
		return domainconversations.Message{}, false, err
	}
	row := s.q.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		ON CONFLICT DO NOTHING
		RETURNING `+messageColumns,
		string(msg.ID), string(msg.ConversationID), string(msg.SenderID), msg.Body, msg.IdempotencyKey, msg.CreatedAt)
	stored, err := scanMessage(row)
	duplicate := false
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows) && msg.IdempotencyKey != "":
		row = s.q.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages
			WHERE conversation_id = $1 AND sender_id = $2 AND idempotency_key = $3`,
			string(msg.ConversationID), string(msg.SenderID), msg.IdempotencyKey)
		if stored, err = scanMessage(row); err != nil {
			return domainconversations.Message{}, false, fmt.Errorf("select message by key: %w", err)
		}
		duplicate = true
	case errors.Is(err, pgx.ErrNoRows):
		return domainconversations.Message{}, false, fmt.Errorf("insert message %s: id already taken", msg.ID)
	default:
		return domainconversations.Message{}, false, fmt.Errorf("insert message: %w", err)
	}
	// Guarded so the pointer only moves forward under concurrent appends.
	if _, err := s.q.Exec(ctx, `
		UPDATE conversations SET last_message_id = $2, last_message_at = $3
		WHERE id = $1 AND (last_message_at IS NULL OR (last_message_at, last_message_id) < ($3, $2))`,
		string(stored.ConversationID), string(stored.ID), stored.CreatedAt); err != nil {
		return domainconversations.Message{}, false, fmt.Errorf("advance last message: %w", err)
	}
	return stored, duplicate, nil
}

func (s *Store) LatestFor(ctx context.Context, ids []domainconversations.ConversationID) (map[domainconversations.ConversationID]domainconversations.Message, error) {
	out := make(map[domainconversations.ConversationID]domainconversations.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	rows, err := s.q.Query(ctx, `SELECT m.id, m.conversation_id, m.sender_id, m.body, m.idempotency_key, m.created_at
		FROM conversations c JOIN messages m ON m.id = c.last_message_id
		WHERE c.id = ANY($1)`, raw)
	if err != nil {
		return nil, fmt.Errorf("load latest messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out[msg.ConversationID] = msg
	}
	return out, rows.Err()
}

func (s *Store) Recent(ctx context.Context, id domainconversations.ConversationID, page domainconversations.Page) ([]domainconversations.Message, error) {
	page = page.Normalize()
	if _, err := s.ByID(ctx, id); err != nil {
		return nil, err
	}
	var (
		rows pgx.Rows
		err  error
	)
	if page.Before == "" {
		rows, err = s.q.Query(ctx, `SELECT `+messageColumns+` FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2`, string(id), page.Limit)
	} else {
		// An unknown cursor compares as NULL and selects nothing.
		rows, err = s.q.Query(ctx, `SELECT `+messageColumns+` FROM messages
			WHERE conversation_id = $1
			  AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id = $3 AND conversation_id = $1)
			ORDER BY created_at DESC, id DESC LIMIT $2`, string(id), page.Limit, string(page.Before))
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	out := make([]domainconversations.Message, 0, page.Limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (domainconversations.Conversation, error) {
	var (
		id, listing, owner, participant string
		createdAt                       time.Time
		lastID                          *string
		lastAt                          *time.Time
	)
	if err := row.Scan(&id, &listing, &owner, &participant, &createdAt, &lastID, &lastAt); err != nil {
		return domainconversations.Conversation{}, err
	}
	conv := domainconversations.Conversation{
		ID:            domainconversations.ConversationID(id),
		ListingID:     domainlistings.ListingID(listing),
		OwnerID:       domainlistings.UserID(owner),
		ParticipantID: domainlistings.UserID(participant),
		CreatedAt:     createdAt.UTC(),
	}
	if lastID != nil && lastAt != nil {
		conv.LastMessageID = domainconversations.MessageID(*lastID)
		conv.LastMessageAt = lastAt.UTC()
	}
	return conv, nil
}

func scanMessage(row pgx.Row) (domainconversations.Message, error) {
	var (
		id, conv, sender, body string
		key                    *string
		createdAt              time.Time
	)
	if err := row.Scan(&id, &conv, &sender, &body, &key, &createdAt); err != nil {
		return domainconversations.Message{}, err
	}
	msg := domainconversations.Message{
		ID:             domainconversations.MessageID(id),
		ConversationID: domainconversations.ConversationID(conv),
		SenderID:       domainlistings.UserID(sender),
		Body:           body,
		CreatedAt:      createdAt.UTC(),
	}
	if key != nil {
		msg.IdempotencyKey = *key
	}
	return msg, nil
}

var (
	_ domainconversations.Repository = (*Store)(nil)
	_ domainconversations.MessageLog = (*Store)(nil)
)
