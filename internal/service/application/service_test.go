package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/mq"
	"github.com/kirinyoku/ticketticket/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

type countingLimiter struct {
	mu    sync.Mutex
	limit int64
	hits  map[string]int64
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, suffix string) (bool, int64, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, 0, 0, l.err
	}
	if l.hits == nil {
		l.hits = map[string]int64{}
	}
	l.hits[suffix]++
	n := l.hits[suffix]
	if n > l.limit {
		return false, n, 30 * time.Second, nil
	}
	return true, n, 0, nil
}

type fixture struct {
	svc   *Service
	store *memory.Store
	pub   *recordingPublisher
	host  uuid.UUID
	l     *domain.Listing
}

func newFixture(t *testing.T, slots int) *fixture {
	t.Helper()

	store := memory.NewStore()
	pub := &recordingPublisher{}
	host := uuid.New()

	l := &domain.Listing{
		HostID:           host,
		EventName:        "VShojo Live",
		EventDate:        domain.NewDate(2026, 12, 24),
		TicketType:       domain.TicketFindCompanion,
		TicketCountType:  domain.CountSolo,
		OriginalPriceJPY: 12000,
		AskingPriceJPY:   6000,
		TotalSlots:       slots,
		AvailableSlots:   slots,
		Status:           domain.ListingOpen,
	}
	require.NoError(t, store.CreateListing(context.Background(), l))

	return &fixture{
		svc:   New(store, nil, pub, nil, moderation.Default(), nil),
		store: store,
		pub:   pub,
		host:  host,
		l:     l,
	}
}

func TestApplyGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	guest := uuid.New()

	_, err := f.svc.Apply(ctx, guest, uuid.New(), "")
	require.ErrorIs(t, err, ErrListingNotFound)

	_, err = f.svc.Apply(ctx, f.host, f.l.ID, "")
	require.ErrorIs(t, err, ErrSelfApplication)

	_, err = f.svc.Apply(ctx, guest, f.l.ID, "you bitch")
	require.ErrorIs(t, err, domain.ErrValidation)

	a, err := f.svc.Apply(ctx, guest, f.l.ID, "  hi, I'd love to go  ")
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationPending, a.Status)
	assert.Equal(t, "hi, I'd love to go", a.Message)

	_, err = f.svc.Apply(ctx, guest, f.l.ID, "again")
	require.ErrorIs(t, err, ErrAlreadyApplied)

	require.NoError(t, f.store.UpdateListingStatus(ctx, f.l.ID, domain.ListingClosed))
	_, err = f.svc.Apply(ctx, uuid.New(), f.l.ID, "")
	require.ErrorIs(t, err, ErrListingNotOpen)
}

func TestApplyAfterCancelAllowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	guest := uuid.New()

	a, err := f.svc.Apply(ctx, guest, f.l.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, guest, a.ID)
	require.NoError(t, err)

	b, err := f.svc.Apply(ctx, guest, f.l.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestApplyRejectedBlocksReapply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	guest := uuid.New()

	a, err := f.svc.Apply(ctx, guest, f.l.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.host, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, guest, f.l.ID, "")
	require.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestApplyRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.svc.limiter = &countingLimiter{limit: 1}
	guest := uuid.New()

	_, err := f.svc.Apply(ctx, guest, f.l.ID, "")
	require.NoError(t, err)

	other := &domain.Listing{
		HostID:           f.host,
		EventName:        "Another",
		EventDate:        domain.NewDate(2026, 12, 25),
		TicketType:       domain.TicketMainTransfer,
		TicketCountType:  domain.CountSolo,
		OriginalPriceJPY: 9000,
		AskingPriceJPY:   9000,
		TotalSlots:       1,
		AvailableSlots:   1,
		Status:           domain.ListingOpen,
	}
	require.NoError(t, f.store.CreateListing(ctx, other))

	_, err = f.svc.Apply(ctx, guest, other.ID, "")
	require.ErrorIs(t, err, domain.ErrRateLimited)

	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestApplyLimiterErrorFailsOpen(t *testing.T) {
	f := newFixture(t, 1)
	f.svc.limiter = &countingLimiter{err: errors.New("redis down")}

	_, err := f.svc.Apply(context.Background(), uuid.New(), f.l.ID, "")
	require.NoError(t, err)
}

func TestAcceptCreatesOneConversationAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	guest := uuid.New()

	a, err := f.svc.Apply(ctx, guest, f.l.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, guest, a.ID)
	require.ErrorIs(t, err, ErrNotHost)

	first, err := f.svc.Accept(ctx, f.host, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationAccepted, first.Application.Status)
	require.NotNil(t, first.Conversation)
	assert.Equal(t, f.host, first.Conversation.HostID)
	assert.Equal(t, guest, first.Conversation.GuestID)

	second, err := f.svc.Accept(ctx, f.host, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)

	l, err := f.store.GetListing(ctx, f.l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, l.AvailableSlots)
	assert.Equal(t, domain.ListingOpen, l.Status)

	sums, err := f.store.ListConversationsForUser(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, sums, 1)

	assert.Equal(t, []string{mq.KeyApplicationCreated, mq.KeyApplicationAccepted}, f.pub.keys)
}

func TestAcceptWithoutSlotsLeavesApplicationPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	a1, err := f.svc.Apply(ctx, uuid.New(), f.l.ID, "")
	require.NoError(t, err)
	a2, err := f.svc.Apply(ctx, uuid.New(), f.l.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, f.host, a1.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, f.host, a2.ID)
	require.ErrorIs(t, err, ErrNoSlotsAvailable)
	assert.Contains(t, err.Error(), "no available slots")

	got, err := f.store.GetApplication(ctx, a2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationPending, got.Status)

	sums, err := f.store.ListConversationsForUser(ctx, a2.GuestID)
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestConcurrentAcceptsNeverOverallocate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	apps := make([]*domain.Application, 5)
	for i := range apps {
		a, err := f.svc.Apply(ctx, uuid.New(), f.l.ID, "")
		require.NoError(t, err)
		apps[i] = a
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, a := range apps {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Accept(ctx, f.host, id)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrNoSlotsAvailable)
		}(a.ID)
	}
	wg.Wait()

	assert.Equal(t, 2, accepted)

	l, err := f.store.GetListing(ctx, f.l.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, l.AvailableSlots)
}

func TestRejectAndCancelTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	guest := uuid.New()

	a, err := f.svc.Apply(ctx, guest, f.l.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, guest, a.ID)
	require.ErrorIs(t, err, ErrNotHost)

	_, err = f.svc.Cancel(ctx, f.host, a.ID)
	require.ErrorIs(t, err, ErrNotApplicant)

	got, err := f.svc.Reject(ctx, f.host, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationRejected, got.Status)

	got, err = f.svc.Reject(ctx, f.host, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationRejected, got.Status)

	_, err = f.svc.Accept(ctx, f.host, a.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Cancel(ctx, guest, a.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Reject(ctx, f.host, uuid.New())
	require.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestPendingApplicationActionableAfterClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	a, err := f.svc.Apply(ctx, uuid.New(), f.l.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateListingStatus(ctx, f.l.ID, domain.ListingClosed))

	res, err := f.svc.Accept(ctx, f.host, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationAccepted, res.Application.Status)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	guest := uuid.New()

	_, err := f.svc.Apply(ctx, guest, f.l.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Apply(ctx, uuid.New(), f.l.ID, "")
	require.NoError(t, err)

	_, err = f.svc.ListForListing(ctx, guest, f.l.ID)
	require.ErrorIs(t, err, ErrNotHost)

	all, err := f.svc.ListForListing(ctx, f.host, f.l.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.ListMine(ctx, guest)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, guest, mine[0].GuestID)
}
