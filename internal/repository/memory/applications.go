package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

func (s *Store) CreateApplication(_ context.Context, a *domain.Application) error {
	const op = "memory.Store.CreateApplication"

	defer s.lock()()

	if _, ok := s.st.listings[a.ListingID]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = domain.ApplicationPending
	}

	if a.Status.Active() {
		for _, other := range s.st.applications {
			if other.ListingID == a.ListingID && other.GuestID == a.GuestID && other.Status.Active() {
				return fmt.Errorf("%s: %w: applications_active_uidx", op, repository.ErrConflict)
			}
		}
	}

	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now

	s.st.seq++
	s.st.applications[a.ID] = *a
	s.st.order[a.ID] = s.st.seq

	return nil
}

func (s *Store) GetApplication(_ context.Context, id uuid.UUID) (*domain.Application, error) {
	const op = "memory.Store.GetApplication"

	defer s.lock()()

	a, ok := s.st.applications[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return &a, nil
}

func (s *Store) FindActiveApplication(_ context.Context, listingID, guestID uuid.UUID) (*domain.Application, error) {
	const op = "memory.Store.FindActiveApplication"

	defer s.lock()()

	for _, a := range s.st.applications {
		if a.ListingID == listingID && a.GuestID == guestID && a.Status.Active() {
			return &a, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func (s *Store) filterApplications(keep func(domain.Application) bool, newestFirst bool) []domain.Application {
	out := []domain.Application{}
	for _, a := range s.st.applications {
		if keep(a) {
			out = append(out, a)
		}
	}

	order := s.st.order
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return order[out[i].ID] > order[out[j].ID]
		}
		return order[out[i].ID] < order[out[j].ID]
	})

	return out
}

func (s *Store) ListApplicationsByListing(_ context.Context, listingID uuid.UUID) ([]domain.Application, error) {
	defer s.lock()()

	return s.filterApplications(func(a domain.Application) bool { return a.ListingID == listingID }, false), nil
}

func (s *Store) ListApplicationsByGuest(_ context.Context, guestID uuid.UUID) ([]domain.Application, error) {
	defer s.lock()()

	return s.filterApplications(func(a domain.Application) bool { return a.GuestID == guestID }, true), nil
}

func (s *Store) UpdateApplicationStatus(_ context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error {
	const op = "memory.Store.UpdateApplicationStatus"

	defer s.lock()()

	a, ok := s.st.applications[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if a.Status != from {
		return fmt.Errorf("%s: %w: status is %s", op, repository.ErrConflict, a.Status)
	}

	a.Status = to
	a.UpdatedAt = s.now()
	s.st.applications[id] = a

	return nil
}
