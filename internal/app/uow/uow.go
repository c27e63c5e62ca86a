package uow

import (
	"context"

	domainconversations "listingchat/internal/domain/conversations"
)

// UnitOfWork scopes the conversation store and message log of one request.
type UnitOfWork interface {
	Conversations() domainconversations.Repository
	Messages() domainconversations.MessageLog

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
