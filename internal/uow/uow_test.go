package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
	"github.com/kirinyoku/ticketticket/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsHooksAfterCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	u := NewUoW(store)

	var ran []string
	err := u.Do(ctx, func(ctx context.Context, tx repository.Store, after func(AfterCommit)) error {
		_, err := tx.EnsureUser(ctx, domain.User{ID: uuid.New(), DisplayName: "mika"})
		require.NoError(t, err)

		after(func(context.Context) { ran = append(ran, "first") })
		after(func(context.Context) { ran = append(ran, "second") })

		assert.Empty(t, ran)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestDoDropsHooksOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	u := NewUoW(store)
	id := uuid.New()

	boom := errors.New("boom")
	called := false
	err := u.Do(ctx, func(ctx context.Context, tx repository.Store, after func(AfterCommit)) error {
		_, err := tx.EnsureUser(ctx, domain.User{ID: id})
		require.NoError(t, err)
		after(func(context.Context) { called = true })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, called)

	_, err = store.GetUser(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHooksSurviveRequestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	u := NewUoW(memory.NewStore())

	var hookErr error
	err := u.Do(ctx, func(ctx context.Context, tx repository.Store, after func(AfterCommit)) error {
		after(func(ctx context.Context) { hookErr = ctx.Err() })
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, hookErr)
}
