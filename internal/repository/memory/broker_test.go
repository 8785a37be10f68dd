package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversPerConversation(t *testing.T) {
	b := NewBroker()
	conv := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	got := make(chan domain.Message, 4)
	done := make(chan error, 1)

	go func() {
		done <- b.Subscribe(ctx, conv, func() { close(ready) }, func(_ context.Context, m domain.Message) {
			got <- m
		})
	}()
	<-ready

	require.NoError(t, b.PublishMessage(ctx, domain.Message{ID: uuid.New(), ConversationID: uuid.New(), Content: "other"}))
	require.NoError(t, b.PublishMessage(ctx, domain.Message{ID: uuid.New(), ConversationID: conv, Content: "mine"}))

	select {
	case m := <-got:
		assert.Equal(t, "mine", m.Content)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Empty(t, b.subs)
}
