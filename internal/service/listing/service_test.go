package listing

import (
	"context"
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

func (p *recordingPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

var fixedNow = time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.Store, *recordingPublisher) {
	t.Helper()

	store := memory.NewStore()
	pub := &recordingPublisher{}
	s := New(store, nil, pub, moderation.Default(), nil, Config{})
	s.now = func() time.Time { return fixedNow }

	return s, store, pub
}

func companionInput() CreateInput {
	return CreateInput{
		EventName:        "Hololive Super Expo",
		EventDate:        domain.NewDate(2026, 12, 1),
		Venue:            "Makuhari Messe",
		TicketType:       domain.TicketFindCompanion,
		SeatGrade:        "S",
		TicketCountType:  domain.CountDuo,
		OriginalPriceJPY: 10000,
		AskingPriceJPY:   4000,
		TotalSlots:       1,
	}
}

func TestCreateEnforcesPriceCeiling(t *testing.T) {
	ctx := context.Background()
	s, _, pub := newService(t)
	host := uuid.New()

	in := companionInput()
	in.AskingPriceJPY = 6000
	_, err := s.Create(ctx, host, in)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorIs(t, err, domain.ErrPriceOutOfRange)

	in.AskingPriceJPY = 4000
	l, err := s.Create(ctx, host, in)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingOpen, l.Status)
	assert.Equal(t, 1, l.AvailableSlots)
	assert.Equal(t, host, l.HostID)
	assert.Equal(t, []string{mq.KeyListingCreated}, pub.Keys())
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"unknown ticket type", func(in *CreateInput) { in.TicketType = "resale" }, "ticketType"},
		{"unknown count type", func(in *CreateInput) { in.TicketCountType = "trio" }, "ticketCountType"},
		{"zero slots", func(in *CreateInput) { in.TotalSlots = 0 }, "totalSlots"},
		{"too many slots", func(in *CreateInput) { in.TotalSlots = 11 }, "totalSlots"},
		{"missing name", func(in *CreateInput) { in.EventName = "  " }, "eventName"},
		{"past event", func(in *CreateInput) { in.EventDate = domain.NewDate(2026, 10, 18) }, "eventDate"},
		{"profanity", func(in *CreateInput) { in.Description = "what a SHIT seller" }, "description"},
		{"pending price", func(in *CreateInput) { in.OriginalPriceJPY = 0 }, "originalPriceJPY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newService(t)
			in := companionInput()
			tt.mutate(&in)

			_, err := s.Create(context.Background(), uuid.New(), in)
			require.ErrorIs(t, err, domain.ErrValidation)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateAllowsToday(t *testing.T) {
	s, _, _ := newService(t)
	in := companionInput()
	in.EventDate = domain.NewDate(2026, 10, 19)

	_, err := s.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)
}

func TestCreateExchange(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)

	in := companionInput()
	in.TicketType = domain.TicketExchange
	in.AskingPriceJPY = 3000
	in.SubsidyAmount = 6000

	_, err := s.Create(ctx, uuid.New(), in)
	require.ErrorIs(t, err, domain.ErrValidation)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "exchangeEventName", ve.Field)

	in.ExchangeEventName = "Day 2"
	_, err = s.Create(ctx, uuid.New(), in)
	require.ErrorIs(t, err, domain.ErrPriceOutOfRange)

	in.SubsidyAmount = 2000
	_, err = s.Create(ctx, uuid.New(), in)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "subsidyDirection", ve.Field)

	in.SubsidyDirection = domain.SubsidyGuestPays
	l, err := s.Create(ctx, uuid.New(), in)
	require.NoError(t, err)
	assert.Zero(t, l.AskingPriceJPY)
	assert.Equal(t, 2000, l.SubsidyAmount)
	assert.Equal(t, domain.SubsidyGuestPays, l.SubsidyDirection)
}

func TestCreateFromEventUsesTierPrice(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newService(t)

	ev := &domain.Event{
		Name:      "Nijisanji Fes",
		EventDate: domain.NewDate(2027, 3, 1),
		Venue:     "Ariake Arena",
		PriceTiers: []domain.TicketPriceTier{
			{SeatGrade: "SS", TicketCountType: domain.CountSolo, PriceJPY: 18000},
		},
	}
	require.NoError(t, store.CreateEvent(ctx, ev))

	in := CreateInput{
		EventID:          &ev.ID,
		TicketType:       domain.TicketMainTransfer,
		SeatGrade:        "SS",
		TicketCountType:  domain.CountSolo,
		OriginalPriceJPY: 999999,
		AskingPriceJPY:   18000,
		TotalSlots:       1,
	}
	l, err := s.Create(ctx, uuid.New(), in)
	require.NoError(t, err)
	assert.Equal(t, "Nijisanji Fes", l.EventName)
	assert.Equal(t, "Ariake Arena", l.Venue)
	assert.Equal(t, 18000, l.OriginalPriceJPY)

	in.AskingPriceJPY = 18001
	_, err = s.Create(ctx, uuid.New(), in)
	require.ErrorIs(t, err, domain.ErrPriceOutOfRange)

	in.TicketCountType = domain.CountDuo
	_, err = s.Create(ctx, uuid.New(), in)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "seatGrade", ve.Field)

	missing := uuid.New()
	in.EventID = &missing
	_, err = s.Create(ctx, uuid.New(), in)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "eventId", ve.Field)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s, _, pub := newService(t)
	host := uuid.New()

	l, err := s.Create(ctx, host, companionInput())
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, uuid.New(), l.ID, domain.ListingMatched)
	require.ErrorIs(t, err, ErrNotOwner)
	require.ErrorIs(t, err, domain.ErrForbidden)

	got, err := s.UpdateStatus(ctx, host, l.ID, domain.ListingMatched)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingMatched, got.Status)

	// same state twice is a silent no-op
	got, err = s.UpdateStatus(ctx, host, l.ID, domain.ListingMatched)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingMatched, got.Status)

	_, err = s.UpdateStatus(ctx, host, l.ID, domain.ListingOpen)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.UpdateStatus(ctx, host, l.ID, domain.ListingClosed)
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, host, l.ID, domain.ListingMatched)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.UpdateStatus(ctx, host, uuid.New(), domain.ListingClosed)
	require.ErrorIs(t, err, ErrListingNotFound)

	assert.Equal(t, []string{
		mq.KeyListingCreated,
		mq.KeyListingStatusChanged,
		mq.KeyListingStatusChanged,
	}, pub.Keys())
}

func TestUpdatePrice(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	host := uuid.New()

	l, err := s.Create(ctx, host, companionInput())
	require.NoError(t, err)

	_, err = s.UpdatePrice(ctx, host, l.ID, PriceUpdate{AskingPriceJPY: 5001})
	require.ErrorIs(t, err, domain.ErrPriceOutOfRange)

	got, err := s.UpdatePrice(ctx, host, l.ID, PriceUpdate{AskingPriceJPY: 5000, SubsidyAmount: 300})
	require.NoError(t, err)
	assert.Equal(t, 5000, got.AskingPriceJPY)
	assert.Zero(t, got.SubsidyAmount)

	_, err = s.UpdatePrice(ctx, uuid.New(), l.ID, PriceUpdate{AskingPriceJPY: 4000})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = s.UpdateStatus(ctx, host, l.ID, domain.ListingClosed)
	require.NoError(t, err)

	_, err = s.UpdatePrice(ctx, host, l.ID, PriceUpdate{AskingPriceJPY: 4000})
	require.ErrorIs(t, err, ErrListingClosed)
}

func TestUpdateExchangeSubsidyDirection(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newService(t)
	host := uuid.New()

	in := companionInput()
	in.TicketType = domain.TicketExchange
	in.ExchangeEventName = "Day 2"
	l, err := s.Create(ctx, host, in)
	require.NoError(t, err)
	require.Equal(t, domain.SubsidyNone, l.SubsidyDirection)

	_, err = s.UpdatePrice(ctx, host, l.ID, PriceUpdate{SubsidyAmount: 1500})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "subsidyDirection", ve.Field)

	bogus := domain.SubsidyDirection("sideways")
	_, err = s.UpdatePrice(ctx, host, l.ID, PriceUpdate{SubsidyAmount: 1500, SubsidyDirection: &bogus})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "subsidyDirection", ve.Field)

	hostPays := domain.SubsidyHostPays
	got, err := s.UpdatePrice(ctx, host, l.ID, PriceUpdate{SubsidyAmount: 1500, SubsidyDirection: &hostPays})
	require.NoError(t, err)
	assert.Equal(t, 1500, got.SubsidyAmount)
	assert.Equal(t, domain.SubsidyHostPays, got.SubsidyDirection)

	stored, err := store.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubsidyHostPays, stored.SubsidyDirection)

	// the stored direction is kept when omitted
	got, err = s.UpdatePrice(ctx, host, l.ID, PriceUpdate{SubsidyAmount: 800})
	require.NoError(t, err)
	assert.Equal(t, domain.SubsidyHostPays, got.SubsidyDirection)

	got, err = s.UpdatePrice(ctx, host, l.ID, PriceUpdate{})
	require.NoError(t, err)
	assert.Zero(t, got.SubsidyAmount)
	assert.Equal(t, domain.SubsidyNone, got.SubsidyDirection)
}

func TestListDefaultsAndClamps(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	host := uuid.New()

	a, err := s.Create(ctx, host, companionInput())
	require.NoError(t, err)
	b, err := s.Create(ctx, host, companionInput())
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, host, b.ID, domain.ListingClosed)
	require.NoError(t, err)

	open, err := s.List(ctx, domain.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	all, err := s.List(ctx, domain.ListingFilter{Status: StatusAll, Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := s.ListByHost(ctx, host, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = s.List(ctx, domain.ListingFilter{Sort: "random"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.List(ctx, domain.ListingFilter{Status: "archived"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _, pub := newService(t)
	host := uuid.New()

	l, err := s.Create(ctx, host, companionInput())
	require.NoError(t, err)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.EventName, got.EventName)

	require.ErrorIs(t, s.Delete(ctx, uuid.New(), l.ID), ErrNotOwner)
	require.NoError(t, s.Delete(ctx, host, l.ID))

	_, err = s.Get(ctx, l.ID)
	require.ErrorIs(t, err, ErrListingNotFound)
	assert.Contains(t, pub.Keys(), mq.KeyListingDeleted)
}
