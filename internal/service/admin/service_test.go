package admin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventInput() EventInput {
	return EventInput{
		Name:      " Hololive 6th fes ",
		EventDate: domain.NewDate(2027, 3, 15),
		Venue:     "Makuhari Messe",
		PriceTiers: []domain.TicketPriceTier{
			{SeatGrade: "S", TicketCountType: domain.CountSolo, PriceJPY: 13200},
			{SeatGrade: "S", TicketCountType: domain.CountDuo, PriceJPY: 26400},
		},
	}
}

func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := New(store, nil, nil, nil, Config{})

	e, err := s.CreateEvent(ctx, eventInput())
	require.NoError(t, err)
	assert.Equal(t, "Hololive 6th fes", e.Name)
	assert.Len(t, e.PriceTiers, 2)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)

	in := eventInput()
	in.PriceTiers = []domain.TicketPriceTier{{SeatGrade: "SS", TicketCountType: domain.CountSolo, PriceJPY: 20000}}
	_, err = s.UpdateEvent(ctx, e.ID, in)
	require.NoError(t, err)

	tier, err := store.FindPriceTier(ctx, e.ID, "SS", domain.CountSolo)
	require.NoError(t, err)
	assert.Equal(t, 20000, tier.PriceJPY)

	list, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].PriceTiers, 1)

	require.NoError(t, s.DeleteEvent(ctx, e.ID))
	require.ErrorIs(t, s.DeleteEvent(ctx, e.ID), ErrEventNotFound)

	_, err = s.GetEvent(ctx, e.ID)
	require.ErrorIs(t, err, ErrEventNotFound)

	_, err = s.UpdateEvent(ctx, uuid.New(), eventInput())
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EventInput)
	}{
		{"missing name", func(in *EventInput) { in.Name = "" }},
		{"missing date", func(in *EventInput) { in.EventDate = domain.Date{} }},
		{"zero price", func(in *EventInput) { in.PriceTiers[0].PriceJPY = 0 }},
		{"bad count type", func(in *EventInput) { in.PriceTiers[0].TicketCountType = "group" }},
		{"blank grade", func(in *EventInput) { in.PriceTiers[0].SeatGrade = " " }},
		{"duplicate tier", func(in *EventInput) { in.PriceTiers[1].TicketCountType = domain.CountSolo }},
	}

	s := New(memory.NewStore(), nil, nil, nil, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := eventInput()
			tt.mutate(&in)

			_, err := s.CreateEvent(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	in := eventInput()
	in.PriceTiers[1].TicketCountType = domain.CountSolo
	_, err := s.CreateEvent(context.Background(), in)
	require.ErrorIs(t, err, ErrTierConflict)
}
