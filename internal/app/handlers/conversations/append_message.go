package conversations

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/dto"
	"listingchat/internal/app/handlers/support"
	"listingchat/internal/app/middleware"
	"listingchat/internal/app/outbox"
	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
	domainlistings "listingchat/internal/domain/listings"
)

const appendMessageKey = "conversations.append_message"

// AppendMessageCommand appends Body to a conversation. Retrying with the same
// IdempotencyKeyV returns the first message instead of writing a second one.
type AppendMessageCommand struct {
	ConversationID  string
	SenderID        string
	Body            string
	IdempotencyKeyV string
}

func (AppendMessageCommand) Key() string { return appendMessageKey }

func (c AppendMessageCommand) Caller() string { return c.SenderID }

// IdempotencyKey is scoped to the conversation and the sender, so one party
// can never replay the other party's message by reusing its key.
func (c AppendMessageCommand) IdempotencyKey() string {
	key := strings.TrimSpace(c.IdempotencyKeyV)
	if key == "" {
		return ""
	}
	return strings.TrimSpace(c.ConversationID) + "/" + strings.TrimSpace(c.SenderID) + "/" + key
}

func (AppendMessageCommand) ResultPrototype() any { return &dto.ChatMessage{} }

func (c AppendMessageCommand) Validate() error {
	if strings.TrimSpace(c.ConversationID) == "" {
		return domainconversations.ErrUnknownConversation
	}
	if strings.TrimSpace(c.Body) == "" {
		return domainconversations.ErrEmptyBody
	}
	return nil
}

type AppendMessageHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	IDs        func() string
	Clock      func() time.Time
	Logger     *slog.Logger
}

func (h *AppendMessageHandler) Handle(ctx context.Context, cmd AppendMessageCommand) (*dto.ChatMessage, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	unit, ctx, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer unit.Finish(ctx)

	conv, err := unit.Conversations().ByID(ctx, domainconversations.ConversationID(strings.TrimSpace(cmd.ConversationID)))
	if errors.Is(err, domainconversations.ErrConversationNotFound) {
		return nil, domainconversations.ErrUnknownConversation
	}
	if err != nil {
		return nil, err
	}

	msg, err := conv.Compose(domainconversations.ComposeParams{
		ID:             domainconversations.MessageID(newID(h.IDs)),
		SenderID:       domainlistings.UserID(strings.TrimSpace(cmd.SenderID)),
		Body:           cmd.Body,
		IdempotencyKey: cmd.IdempotencyKeyV,
		Now:            now(h.Clock),
	})
	if err != nil {
		return nil, err
	}

	stored, duplicate, err := unit.Messages().Append(ctx, msg)
	if err != nil {
		return nil, err
	}
	if !duplicate {
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, encoderOrDefault(h.Encoder), conv.Drain()); err != nil {
			return nil, err
		}
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.DebugContext(ctx, "message appended",
			"conversation_id", stored.ConversationID, "message_id", stored.ID, "duplicate", duplicate)
	}

	out := dto.FromMessage(stored)
	out.Duplicate = duplicate
	return &out, nil
}

var (
	_ commands.Handler[AppendMessageCommand, *dto.ChatMessage] = (*AppendMessageHandler)(nil)
	_ middleware.IdempotentCommand                             = AppendMessageCommand{}
)
