// Package uow runs service writes in one store transaction and defers side
// effects (cache invalidation, realtime fan-out, domain events) until the
// transaction committed.
package uow

import (
	"context"

	"github.com/kirinyoku/ticketticket/internal/repository"
)

// AfterCommit runs once the transaction committed. Its context is detached
// from the request's cancellation.
type AfterCommit func(ctx context.Context)

// Work is the transactional body. It must use tx for every read and write
// and register side effects through after.
type Work func(ctx context.Context, tx repository.Store, after func(AfterCommit)) error

type UoW struct {
	store repository.Store
}

func NewUoW(store repository.Store) *UoW {
	return &UoW{store: store}
}

// Do runs work in a transaction, then the hooks it registered, in order.
// Hooks of a failed or retried attempt never run.
func (u *UoW) Do(ctx context.Context, work Work) error {
	var hooks []AfterCommit

	err := u.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		hooks = hooks[:0]

		return work(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, h := range hooks {
		h(hookCtx)
	}

	return nil
}
