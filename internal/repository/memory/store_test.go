package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedListing(t *testing.T, s *Store, slots int) *domain.Listing {
	t.Helper()

	l := &domain.Listing{
		HostID:           uuid.New(),
		EventName:        "Summer Live",
		EventDate:        domain.NewDate(2026, 12, 1),
		Venue:            "Budokan",
		TicketType:       domain.TicketFindCompanion,
		TicketCountType:  domain.CountSolo,
		OriginalPriceJPY: 10000,
		AskingPriceJPY:   5000,
		TotalSlots:       slots,
		AvailableSlots:   slots,
		Status:           domain.ListingOpen,
	}
	require.NoError(t, s.CreateListing(context.Background(), l))

	return l
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 2)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		_, err := tx.DecrementAvailableSlots(ctx, l.ID)
		require.NoError(t, err)
		require.NoError(t, tx.UpdateListingStatus(ctx, l.ID, domain.ListingClosed))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSlots)
	assert.Equal(t, domain.ListingOpen, got.Status)
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 3)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.DecrementAvailableSlots(ctx, l.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			assert.ErrorIs(t, err, repository.ErrNoSlots)
			fail++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, fail)

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableSlots)
}

func TestActiveApplicationUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 1)
	guest := uuid.New()

	first := &domain.Application{ListingID: l.ID, GuestID: guest}
	require.NoError(t, s.CreateApplication(ctx, first))
	assert.Equal(t, domain.ApplicationPending, first.Status)

	err := s.CreateApplication(ctx, &domain.Application{ListingID: l.ID, GuestID: guest})
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, s.UpdateApplicationStatus(ctx, first.ID, domain.ApplicationPending, domain.ApplicationCancelled))
	require.NoError(t, s.CreateApplication(ctx, &domain.Application{ListingID: l.ID, GuestID: guest}))

	active, err := s.FindActiveApplication(ctx, l.ID, guest)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, active.ID)
}

func TestUpdateApplicationStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 1)

	a := &domain.Application{ListingID: l.ID, GuestID: uuid.New()}
	require.NoError(t, s.CreateApplication(ctx, a))
	require.NoError(t, s.UpdateApplicationStatus(ctx, a.ID, domain.ApplicationPending, domain.ApplicationRejected))

	err := s.UpdateApplicationStatus(ctx, a.ID, domain.ApplicationPending, domain.ApplicationAccepted)
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = s.UpdateApplicationStatus(ctx, uuid.New(), domain.ApplicationPending, domain.ApplicationAccepted)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnsureConversationConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 1)
	guest := uuid.New()

	const n = 8
	ids := make([]uuid.UUID, n)
	created := make([]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, isNew, err := s.EnsureConversation(ctx, l.ID, l.HostID, guest)
			if assert.NoError(t, err) {
				ids[i], created[i] = c.ID, isNew
			}
		}(i)
	}
	wg.Wait()

	newCount := 0
	for i := 0; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)
}

func TestMessagesReadAndSummary(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 1)
	guest := uuid.New()

	c, _, err := s.EnsureConversation(ctx, l.ID, l.HostID, guest)
	require.NoError(t, err)

	for _, m := range []domain.Message{
		{ConversationID: c.ID, SenderID: guest, Content: "hello"},
		{ConversationID: c.ID, SenderID: guest, Content: "still there?"},
		{ConversationID: c.ID, SenderID: l.HostID, Content: "yes"},
	} {
		m := m
		require.NoError(t, s.CreateMessage(ctx, &m))
	}

	sums, err := s.ListConversationsForUser(ctx, l.HostID)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].UnreadCount)
	assert.Equal(t, guest, sums[0].CounterpartID)
	assert.Equal(t, "Summer Live", sums[0].EventName)
	require.NotNil(t, sums[0].LastMessage)
	assert.Equal(t, "yes", sums[0].LastMessage.Content)

	n, err := s.MarkMessagesRead(ctx, c.ID, l.HostID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	msgs, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"hello", "still there?", "yes"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	assert.True(t, msgs[0].IsRead)
	assert.False(t, msgs[2].IsRead)

	sums, err = s.ListConversationsForUser(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, sums[0].UnreadCount)
}

func TestReviewUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 1)
	guest := uuid.New()

	r := &domain.Review{ReviewerID: guest, RevieweeID: l.HostID, ListingID: l.ID, Rating: 5}
	require.NoError(t, s.CreateReview(ctx, r))

	err := s.CreateReview(ctx, &domain.Review{ReviewerID: guest, RevieweeID: l.HostID, ListingID: l.ID, Rating: 1})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := s.ListReviewsForUser(ctx, l.HostID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Rating)
}

func TestListListingsFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	mk := func(name string, date domain.Date, price int, status domain.ListingStatus) {
		l := &domain.Listing{
			HostID:           uuid.New(),
			EventName:        name,
			EventDate:        date,
			TicketType:       domain.TicketMainTransfer,
			TicketCountType:  domain.CountSolo,
			OriginalPriceJPY: 20000,
			AskingPriceJPY:   price,
			TotalSlots:       1,
			AvailableSlots:   1,
			Status:           status,
		}
		require.NoError(t, s.CreateListing(ctx, l))
	}

	mk("Arena Tour", domain.NewDate(2026, 11, 3), 9000, domain.ListingOpen)
	mk("arena tour final", domain.NewDate(2026, 11, 1), 12000, domain.ListingOpen)
	mk("Dome Live", domain.NewDate(2026, 10, 30), 8000, domain.ListingOpen)
	mk("Arena Tour", domain.NewDate(2026, 11, 2), 7000, domain.ListingClosed)

	got, err := s.ListListings(ctx, domain.ListingFilter{Status: domain.ListingOpen, EventName: "ARENA"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "arena tour final", got[0].EventName)

	got, err = s.ListListings(ctx, domain.ListingFilter{Status: domain.ListingOpen, Sort: domain.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{8000, 9000, 12000}, []int{got[0].AskingPriceJPY, got[1].AskingPriceJPY, got[2].AskingPriceJPY})

	from := domain.NewDate(2026, 11, 1)
	got, err = s.ListListings(ctx, domain.ListingFilter{DateFrom: &from, Sort: domain.SortNewest, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ListingClosed, got[0].Status)

	got, err = s.ListListings(ctx, domain.ListingFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventTiers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	e := &domain.Event{
		Name:      "Arena Tour",
		EventDate: domain.NewDate(2026, 11, 3),
		PriceTiers: []domain.TicketPriceTier{
			{SeatGrade: "S", TicketCountType: domain.CountSolo, PriceJPY: 12000},
			{SeatGrade: "A", TicketCountType: domain.CountDuo, PriceJPY: 18000},
		},
	}
	require.NoError(t, s.CreateEvent(ctx, e))

	tier, err := s.FindPriceTier(ctx, e.ID, "A", domain.CountDuo)
	require.NoError(t, err)
	assert.Equal(t, 18000, tier.PriceJPY)

	_, err = s.FindPriceTier(ctx, e.ID, "A", domain.CountSolo)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	dup := &domain.Event{
		ID:        e.ID,
		Name:      e.Name,
		EventDate: e.EventDate,
		PriceTiers: []domain.TicketPriceTier{
			{SeatGrade: "S", TicketCountType: domain.CountSolo, PriceJPY: 1},
			{SeatGrade: "S", TicketCountType: domain.CountSolo, PriceJPY: 2},
		},
	}
	assert.ErrorIs(t, s.UpdateEvent(ctx, dup), repository.ErrConflict)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.PriceTiers, 2)
}
