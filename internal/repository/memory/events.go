package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

type tierKey struct {
	seatGrade string
	countType domain.TicketCountType
}

func copyTiers(tiers []domain.TicketPriceTier) ([]domain.TicketPriceTier, error) {
	seen := make(map[tierKey]bool, len(tiers))
	out := make([]domain.TicketPriceTier, 0, len(tiers))

	for _, t := range tiers {
		k := tierKey{t.SeatGrade, t.TicketCountType}
		if seen[k] {
			return nil, fmt.Errorf("%w: ticket_price_tiers_pkey", repository.ErrConflict)
		}
		seen[k] = true
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SeatGrade != out[j].SeatGrade {
			return out[i].SeatGrade < out[j].SeatGrade
		}
		return out[i].TicketCountType < out[j].TicketCountType
	})

	return out, nil
}

func (s *Store) CreateEvent(_ context.Context, e *domain.Event) error {
	const op = "memory.Store.CreateEvent"

	defer s.lock()()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, ok := s.st.events[e.ID]; ok {
		return fmt.Errorf("%s: %w: events_pkey", op, repository.ErrConflict)
	}

	tiers, err := copyTiers(e.PriceTiers)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.PriceTiers = tiers
	e.CreatedAt = s.now()

	stored := *e
	stored.PriceTiers = append([]domain.TicketPriceTier(nil), tiers...)
	s.st.events[e.ID] = stored

	return nil
}

func (s *Store) UpdateEvent(_ context.Context, e *domain.Event) error {
	const op = "memory.Store.UpdateEvent"

	defer s.lock()()

	prev, ok := s.st.events[e.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	tiers, err := copyTiers(e.PriceTiers)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.PriceTiers = tiers
	e.CreatedAt = prev.CreatedAt

	stored := *e
	stored.PriceTiers = append([]domain.TicketPriceTier(nil), tiers...)
	s.st.events[e.ID] = stored

	return nil
}

// DeleteEvent removes the event. Listings created from it keep their copied
// fields and lose the reference.
func (s *Store) DeleteEvent(_ context.Context, id uuid.UUID) error {
	const op = "memory.Store.DeleteEvent"

	defer s.lock()()

	if _, ok := s.st.events[id]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	delete(s.st.events, id)

	for lid, l := range s.st.listings {
		if l.EventID != nil && *l.EventID == id {
			l.EventID = nil
			s.st.listings[lid] = l
		}
	}

	return nil
}

func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "memory.Store.GetEvent"

	defer s.lock()()

	e, ok := s.st.events[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	e.PriceTiers = append([]domain.TicketPriceTier{}, e.PriceTiers...)

	return &e, nil
}

func (s *Store) ListEvents(_ context.Context) ([]domain.Event, error) {
	defer s.lock()()

	out := make([]domain.Event, 0, len(s.st.events))
	for _, e := range s.st.events {
		e.PriceTiers = append([]domain.TicketPriceTier{}, e.PriceTiers...)
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EventDate != out[j].EventDate {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].Name < out[j].Name
	})

	return out, nil
}

func (s *Store) FindPriceTier(
	_ context.Context,
	eventID uuid.UUID,
	seatGrade string,
	countType domain.TicketCountType,
) (*domain.TicketPriceTier, error) {
	const op = "memory.Store.FindPriceTier"

	defer s.lock()()

	e, ok := s.st.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	for _, t := range e.PriceTiers {
		if t.SeatGrade == seatGrade && t.TicketCountType == countType {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}
