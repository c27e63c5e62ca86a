package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/dto"
	conversationsapp "listingchat/internal/app/handlers/conversations"
	inboxapp "listingchat/internal/app/handlers/inbox"
	"listingchat/internal/app/queries"
	domainconversations "listingchat/internal/domain/conversations"
)

// ChatHandler bridges HTTP with the conversation commands and queries.
type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// CreateListingConversation gets or creates the caller's conversation with
// the owner of the listing.
func (h ChatHandler) CreateListingConversation(c *gin.Context) {
	cmd := conversationsapp.CreateConversationCommand{ListingID: c.Param("id"), RequesterID: caller(c)}
	conv, err := commands.Dispatch[conversationsapp.CreateConversationCommand, *dto.Conversation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "create conversation", "listing_id", cmd.ListingID)
		return
	}
	status := http.StatusOK
	if conv.Created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

func (h ChatHandler) ListMyConversations(c *gin.Context) {
	q := conversationsapp.ListConversationsQuery{UserID: caller(c)}
	list, err := queries.Ask[conversationsapp.ListConversationsQuery, *dto.ConversationList](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "list conversations")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h ChatHandler) GetConversation(c *gin.Context) {
	q := conversationsapp.GetConversationQuery{ConversationID: c.Param("id"), ViewerID: caller(c)}
	conv, err := queries.Ask[conversationsapp.GetConversationQuery, *dto.Conversation](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get conversation", "conversation_id", q.ConversationID)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	q := conversationsapp.ListMessagesQuery{
		ConversationID: c.Param("id"),
		ViewerID:       caller(c),
		Limit:          parsePositiveIntStrict(c.Query("limit"), domainconversations.DefaultPageLimit),
		Before:         c.Query("cursor"),
	}
	list, err := queries.Ask[conversationsapp.ListMessagesQuery, *dto.ChatMessageList](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "list messages", "conversation_id", q.ConversationID)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SendMessage appends a message. The Idempotency-Key header makes retries
// return the first message.
func (h ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "kind": "validation"})
		return
	}
	cmd := conversationsapp.AppendMessageCommand{
		ConversationID:  c.Param("id"),
		SenderID:        caller(c),
		Body:            req.Body,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	}
	msg, err := commands.Dispatch[conversationsapp.AppendMessageCommand, *dto.ChatMessage](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "send message", "conversation_id", cmd.ConversationID)
		return
	}
	status := http.StatusCreated
	if msg.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, msg)
}

func (h ChatHandler) Inbox(c *gin.Context) {
	q := inboxapp.BuildInboxQuery{UserID: caller(c)}
	inbox, err := queries.Ask[inboxapp.BuildInboxQuery, *dto.Inbox](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "build inbox")
		return
	}
	c.JSON(http.StatusOK, inbox)
}

var _ ChatHTTP = ChatHandler{}
