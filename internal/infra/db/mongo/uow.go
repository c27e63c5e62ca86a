package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory hands out causally consistent sessions. Multi-document
// transactions are not used: a duplicate-key insert aborts a transaction,
// and both repositories resolve duplicates by re-reading.
type Factory struct {
	DB *mongo.Database

	Conversations *ConversationRepository
	Messages      *MessageLog
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.Conversations == nil || f.Messages == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	sessOpts := options.Session().SetCausalConsistency(true)
	if opts.ReadOnly {
		sessOpts = sessOpts.SetDefaultReadPreference(f.DB.ReadPreference())
	}
	session, err := f.DB.Client().StartSession(sessOpts)
	if err != nil {
		return nil, err
	}
	return &Unit{session: session, conversations: f.Conversations, messages: f.Messages}, nil
}

type Unit struct {
	session mongo.Session

	conversations *ConversationRepository
	messages      *MessageLog
}

func (u *Unit) Conversations() domainconversations.Repository { return u.conversations }

func (u *Unit) Messages() domainconversations.MessageLog { return u.messages }

func (u *Unit) Commit(ctx context.Context) error {
	u.session.EndSession(ctx)
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.session.EndSession(ctx)
	return nil
}

// InjectContext makes the session visible to repository calls made with ctx.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
