package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

func (s *Store) CreateListing(_ context.Context, l *domain.Listing) error {
	const op = "memory.Store.CreateListing"

	defer s.lock()()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if _, ok := s.st.listings[l.ID]; ok {
		return fmt.Errorf("%s: %w: listings_pkey", op, repository.ErrConflict)
	}

	now := s.now()
	l.CreatedAt, l.UpdatedAt = now, now

	s.st.seq++
	s.st.listings[l.ID] = *l
	s.st.order[l.ID] = s.st.seq

	return nil
}

func (s *Store) GetListing(_ context.Context, id uuid.UUID) (*domain.Listing, error) {
	const op = "memory.Store.GetListing"

	defer s.lock()()

	l, ok := s.st.listings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return &l, nil
}

func (s *Store) ListListings(_ context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	defer s.lock()()

	needle := strings.ToLower(f.EventName)

	out := []domain.Listing{}
	for _, l := range s.st.listings {
		switch {
		case f.Status != "" && l.Status != f.Status,
			f.TicketType != "" && l.TicketType != f.TicketType,
			needle != "" && !strings.Contains(strings.ToLower(l.EventName), needle),
			f.HostID != nil && l.HostID != *f.HostID,
			f.DateFrom != nil && l.EventDate.Before(*f.DateFrom),
			f.DateTo != nil && l.EventDate.After(*f.DateTo):
			continue
		}
		out = append(out, l)
	}

	seq := s.st.order
	newer := func(a, b domain.Listing) bool { return seq[a.ID] > seq[b.ID] }

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.Sort {
		case domain.SortNewest:
			return newer(a, b)
		case domain.SortPriceAsc, domain.SortPriceDesc:
			if a.AskingPriceJPY != b.AskingPriceJPY {
				if f.Sort == domain.SortPriceAsc {
					return a.AskingPriceJPY < b.AskingPriceJPY
				}
				return a.AskingPriceJPY > b.AskingPriceJPY
			}
			if a.EventDate != b.EventDate {
				return a.EventDate.Before(b.EventDate)
			}
			return newer(a, b)
		default:
			if a.EventDate != b.EventDate {
				return a.EventDate.Before(b.EventDate)
			}
			return newer(a, b)
		}
	})

	if f.Offset >= len(out) {
		return []domain.Listing{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}

	return out, nil
}

func (s *Store) UpdateListingStatus(_ context.Context, id uuid.UUID, status domain.ListingStatus) error {
	const op = "memory.Store.UpdateListingStatus"

	defer s.lock()()

	l, ok := s.st.listings[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	l.Status = status
	l.UpdatedAt = s.now()
	s.st.listings[id] = l

	return nil
}

func (s *Store) UpdateListingPrice(
	_ context.Context,
	id uuid.UUID,
	askingPriceJPY, subsidyAmount int,
	direction domain.SubsidyDirection,
) error {
	const op = "memory.Store.UpdateListingPrice"

	defer s.lock()()

	l, ok := s.st.listings[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	l.AskingPriceJPY = askingPriceJPY
	l.SubsidyAmount = subsidyAmount
	l.SubsidyDirection = direction
	l.UpdatedAt = s.now()
	s.st.listings[id] = l

	return nil
}

func (s *Store) DecrementAvailableSlots(_ context.Context, id uuid.UUID) (int, error) {
	const op = "memory.Store.DecrementAvailableSlots"

	defer s.lock()()

	l, ok := s.st.listings[id]
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if l.AvailableSlots <= 0 {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrNoSlots)
	}

	l.AvailableSlots--
	l.UpdatedAt = s.now()
	s.st.listings[id] = l

	return l.AvailableSlots, nil
}

// DeleteListing removes the listing and everything that cascades from it in
// the SQL schema.
func (s *Store) DeleteListing(_ context.Context, id uuid.UUID) error {
	const op = "memory.Store.DeleteListing"

	defer s.lock()()

	if _, ok := s.st.listings[id]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	delete(s.st.listings, id)
	delete(s.st.order, id)

	for aid, a := range s.st.applications {
		if a.ListingID == id {
			delete(s.st.applications, aid)
			delete(s.st.order, aid)
		}
	}
	for rid, r := range s.st.reviews {
		if r.ListingID == id {
			delete(s.st.reviews, rid)
		}
	}

	gone := make(map[uuid.UUID]bool)
	for cid, c := range s.st.conversations {
		if c.ListingID == id {
			gone[cid] = true
			delete(s.st.conversations, cid)
		}
	}
	if len(gone) > 0 {
		kept := s.st.messages[:0:0]
		for _, m := range s.st.messages {
			if !gone[m.ConversationID] {
				kept = append(kept, m)
			}
		}
		s.st.messages = kept
	}

	return nil
}
