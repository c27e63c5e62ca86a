package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/dto"
	rosterapp "listingchat/internal/app/handlers/roster"
	"listingchat/internal/app/queries"
)

type RosterHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h RosterHandler) ListParticipants(c *gin.Context) {
	q := rosterapp.ListParticipantsQuery{ListingID: c.Param("id")}
	list, err := queries.Ask[rosterapp.ListParticipantsQuery, *dto.ParticipantList](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "list participants", "listing_id", q.ListingID)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h RosterHandler) AddParticipant(c *gin.Context) {
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "kind": "validation"})
		return
	}
	cmd := rosterapp.AddParticipantCommand{ListingID: c.Param("id"), ActorID: caller(c), ParticipantID: req.ParticipantID}
	change, err := commands.Dispatch[rosterapp.AddParticipantCommand, *dto.RosterChange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "add participant", "listing_id", cmd.ListingID)
		return
	}
	c.JSON(http.StatusOK, change)
}

func (h RosterHandler) CheckConversation(c *gin.Context) {
	q := rosterapp.CheckRosterQuery{ConversationID: c.Param("id"), ViewerID: caller(c)}
	status, err := queries.Ask[rosterapp.CheckRosterQuery, *dto.RosterStatus](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "check roster", "conversation_id", q.ConversationID)
		return
	}
	c.JSON(http.StatusOK, status)
}

var _ RosterHTTP = RosterHandler{}
