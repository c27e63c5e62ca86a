// Package bootstrap registers every chat handler on the command and query
// buses and wraps them in the middleware pipeline.
package bootstrap

import (
	"log/slog"
	"time"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/dto"
	conversationsapp "listingchat/internal/app/handlers/conversations"
	inboxapp "listingchat/internal/app/handlers/inbox"
	rosterapp "listingchat/internal/app/handlers/roster"
	"listingchat/internal/app/middleware"
	"listingchat/internal/app/outbox"
	"listingchat/internal/app/policies"
	"listingchat/internal/app/queries"
	"listingchat/internal/app/uow"
)

type Deps struct {
	UoWFactory  uow.UoWFactory
	Listings    policies.ListingGateway
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Idempotency middleware.IdempotencyStore
	Clock       func() time.Time
	Logger      *slog.Logger
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func Build(d Deps) Buses {
	if d.Encoder == nil {
		d.Encoder = outbox.JSONEventEncoder{}
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[conversationsapp.CreateConversationCommand, *dto.Conversation](commandBus,
		&conversationsapp.CreateConversationHandler{
			UoWFactory: d.UoWFactory,
			Listings:   d.Listings,
			Outbox:     d.Outbox,
			Encoder:    d.Encoder,
			Clock:      d.Clock,
			Logger:     d.Logger,
		})
	commands.RegisterHandler[conversationsapp.AppendMessageCommand, *dto.ChatMessage](commandBus,
		&conversationsapp.AppendMessageHandler{
			UoWFactory: d.UoWFactory,
			Outbox:     d.Outbox,
			Encoder:    d.Encoder,
			Clock:      d.Clock,
			Logger:     d.Logger,
		})
	commands.RegisterHandler[rosterapp.AddParticipantCommand, *dto.RosterChange](commandBus,
		&rosterapp.AddParticipantHandler{
			Listings: d.Listings,
			Outbox:   d.Outbox,
			Encoder:  d.Encoder,
			Clock:    d.Clock,
			Logger:   d.Logger,
		})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[conversationsapp.GetConversationQuery, *dto.Conversation](queryBus,
		&conversationsapp.GetConversationHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[conversationsapp.ListConversationsQuery, *dto.ConversationList](queryBus,
		&conversationsapp.ListConversationsHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[conversationsapp.ListMessagesQuery, *dto.ChatMessageList](queryBus,
		&conversationsapp.ListMessagesHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[inboxapp.BuildInboxQuery, *dto.Inbox](queryBus,
		&inboxapp.BuildInboxHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[rosterapp.ListParticipantsQuery, *dto.ParticipantList](queryBus,
		&rosterapp.ListParticipantsHandler{Listings: d.Listings})
	queries.RegisterHandler[rosterapp.CheckRosterQuery, *dto.RosterStatus](queryBus,
		&rosterapp.CheckRosterHandler{UoWFactory: d.UoWFactory, Listings: d.Listings})

	commandMW := []middleware.CommandMiddleware{
		middleware.Logging(d.Logger),
		middleware.Validation(middleware.MessageValidator{}),
		middleware.Authorization(middleware.RequireCaller{}),
	}
	if d.Idempotency != nil {
		commandMW = append(commandMW, middleware.Idempotency(d.Idempotency, nil, d.Logger))
	}
	// Flushing wraps the transaction so events leave only after a commit.
	if d.Outbox != nil {
		commandMW = append(commandMW, middleware.OutboxFlush(d.Outbox, d.Logger))
	}
	commandMW = append(commandMW, middleware.Transaction(d.UoWFactory, nil))

	return Buses{
		Commands: middleware.ChainCommands(commandBus, commandMW...),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryLogging(d.Logger),
			middleware.QueryValidation(middleware.MessageValidator{}),
			middleware.QueryAuthorization(middleware.RequireCaller{}),
		),
	}
}
