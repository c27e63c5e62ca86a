package scylla

import (
	"context"
	"errors"

	"listingchat/internal/app/uow"
	domainconversations "listingchat/internal/domain/conversations"
)

var ErrFactoryMisconfigured = errors.New("scylla: unit of work factory missing store")

// Factory hands out units over a shared Store. Scylla has no multi-row
// transactions, so commit and rollback only end the unit.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{store: f.Store}, nil
}

type Unit struct {
	store *Store
}

func (u *Unit) Conversations() domainconversations.Repository { return u.store }

func (u *Unit) Messages() domainconversations.MessageLog { return u.store }

func (u *Unit) Commit(ctx context.Context) error { return nil }

func (u *Unit) Rollback(ctx context.Context) error { return nil }
