package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

func (s *Store) CreateReview(_ context.Context, r *domain.Review) error {
	const op = "memory.Store.CreateReview"

	defer s.lock()()

	if _, ok := s.st.listings[r.ListingID]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	for _, other := range s.st.reviews {
		if other.ReviewerID == r.ReviewerID && other.ListingID == r.ListingID && other.RevieweeID == r.RevieweeID {
			return fmt.Errorf("%s: %w: reviews_reviewer_id_listing_id_reviewee_id_key", op, repository.ErrConflict)
		}
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = s.now()

	s.st.seq++
	s.st.reviews[r.ID] = *r
	s.st.order[r.ID] = s.st.seq

	return nil
}

func (s *Store) sortedReviews(keep func(domain.Review) bool, newestFirst bool) []domain.Review {
	out := []domain.Review{}
	for _, r := range s.st.reviews {
		if keep(r) {
			out = append(out, r)
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

func (s *Store) ListReviewsByReviewer(_ context.Context, reviewerID, listingID uuid.UUID) ([]domain.Review, error) {
	defer s.lock()()

	return s.sortedReviews(func(r domain.Review) bool {
		return r.ReviewerID == reviewerID && r.ListingID == listingID
	}, false), nil
}

func (s *Store) ListReviewsForUser(_ context.Context, revieweeID uuid.UUID) ([]domain.Review, error) {
	defer s.lock()()

	return s.sortedReviews(func(r domain.Review) bool { return r.RevieweeID == revieweeID }, true), nil
}
