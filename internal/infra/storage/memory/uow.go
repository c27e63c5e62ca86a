package memory

import (
	"context"
	"errors"

	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory hands out units over a shared ChatStore. Isolation comes from the
// store's own lock, so commit and rollback are no-ops.
type Factory struct {
	Store *ChatStore
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{store: f.Store}, nil
}

type Unit struct {
	store *ChatStore
}

func (u *Unit) Conversations() domainconversations.Repository { return u.store }

func (u *Unit) Messages() domainconversations.MessageLog { return u.store }

func (u *Unit) Commit(ctx context.Context) error { return nil }

func (u *Unit) Rollback(ctx context.Context) error { return nil }
