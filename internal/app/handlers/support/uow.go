package support

import (
	"context"

	"listingchat/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit already bound to ctx or starts a
// read-only one. The returned cleanup is nil when the unit was reused.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	return begin(ctx, factory, uow.TxOptions{ReadOnly: true})
}

// Unit is a write unit owned by a handler that may run with or without the
// transaction middleware.
type Unit struct {
	uow.UnitOfWork
	managed   bool
	committed bool
}

// BeginUnit reuses the unit bound to ctx or starts a write unit that the
// caller must Finish.
func BeginUnit(ctx context.Context, factory uow.UoWFactory) (*Unit, context.Context, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &Unit{UnitOfWork: unit}, ctx, nil
	}
	unit, execCtx, _, err := begin(ctx, factory, uow.TxOptions{})
	if err != nil {
		return nil, ctx, err
	}
	return &Unit{UnitOfWork: unit, managed: true}, execCtx, nil
}

// Commit commits only units started by BeginUnit.
func (u *Unit) Commit(ctx context.Context) error {
	if !u.managed || u.committed {
		return nil
	}
	if err := u.UnitOfWork.Commit(ctx); err != nil {
		return err
	}
	u.committed = true
	return nil
}

// Finish rolls back a managed unit that was never committed.
func (u *Unit) Finish(ctx context.Context) {
	if u.managed && !u.committed {
		_ = u.UnitOfWork.Rollback(ctx)
	}
}

func begin(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	cleanup := func() {
		_ = unit.Rollback(execCtx)
	}
	return unit, execCtx, cleanup, nil
}
