package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return false, 99, 10 * time.Second, nil
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	broker *memory.Broker
	host   uuid.UUID
	guest  uuid.UUID
	conv   *domain.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	broker := memory.NewBroker()
	host, guest := uuid.New(), uuid.New()

	l := &domain.Listing{
		HostID:           host,
		EventName:        "Holo Summer",
		EventDate:        domain.NewDate(2026, 12, 1),
		TicketType:       domain.TicketFindCompanion,
		TicketCountType:  domain.CountSolo,
		OriginalPriceJPY: 8000,
		AskingPriceJPY:   4000,
		TotalSlots:       1,
		AvailableSlots:   1,
		Status:           domain.ListingOpen,
	}
	require.NoError(t, store.CreateListing(ctx, l))

	conv, _, err := store.EnsureConversation(ctx, l.ID, host, guest)
	require.NoError(t, err)

	return &fixture{
		svc:    New(store, broker, nil, nil, moderation.Default(), nil),
		store:  store,
		broker: broker,
		host:   host,
		guest:  guest,
		conv:   conv,
	}
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Send(ctx, f.guest, f.conv.ID, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Send(ctx, f.guest, f.conv.ID, strings.Repeat("あ", MaxContentLen+1))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Send(ctx, uuid.New(), f.conv.ID, "hello")
	require.ErrorIs(t, err, ErrNotParticipant)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Send(ctx, f.guest, uuid.New(), "hello")
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSendMasksProfanity(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.Send(context.Background(), f.guest, f.conv.ID, " see you, shit! ")
	require.NoError(t, err)
	assert.Equal(t, "see you, ****!", m.Content)
	assert.False(t, m.IsRead)
}

func TestSendRateLimited(t *testing.T) {
	f := newFixture(t)
	f.svc.limiter = denyAll{}

	_, err := f.svc.Send(context.Background(), f.guest, f.conv.ID, "hello")
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestOpenMarksCounterpartMessagesRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, c := range []string{"hi", "are we meeting at the gate?"} {
		_, err := f.svc.Send(ctx, f.guest, f.conv.ID, c)
		require.NoError(t, err)
	}
	_, err := f.svc.Send(ctx, f.host, f.conv.ID, "yes, 17:00")
	require.NoError(t, err)

	sums, err := f.svc.ListConversations(ctx, f.host)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].UnreadCount)

	th, err := f.svc.Open(ctx, f.host, f.conv.ID)
	require.NoError(t, err)
	require.Len(t, th.Messages, 3)
	assert.Equal(t, "hi", th.Messages[0].Content)
	assert.True(t, th.Messages[0].IsRead)
	assert.True(t, th.Messages[1].IsRead)
	assert.False(t, th.Messages[2].IsRead)

	sums, err = f.svc.ListConversations(ctx, f.host)
	require.NoError(t, err)
	assert.Zero(t, sums[0].UnreadCount)

	_, err = f.svc.Open(ctx, uuid.New(), f.conv.ID)
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestSubscribeReceivesCommittedMessages(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	got := make(chan domain.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- f.svc.Subscribe(ctx, f.host, f.conv.ID, func() { close(ready) }, func(_ context.Context, m domain.Message) {
			got <- m
		})
	}()

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("subscription never became ready")
	}

	sent, err := f.svc.Send(context.Background(), f.guest, f.conv.ID, "on my way")
	require.NoError(t, err)

	select {
	case m := <-got:
		assert.Equal(t, sent.ID, m.ID)
		assert.Equal(t, "on my way", m.Content)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestSubscribeRequiresParticipant(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Subscribe(context.Background(), uuid.New(), f.conv.ID, nil, func(context.Context, domain.Message) {})
	require.ErrorIs(t, err, ErrNotParticipant)
}
