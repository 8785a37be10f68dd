package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

const reviewColumns = `id, reviewer_id, reviewee_id, listing_id, rating, comment, created_at`

func collectReviews(rows pgx.Rows) ([]domain.Review, error) {
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var r domain.Review
		if err := rows.Scan(
			&r.ID,
			&r.ReviewerID,
			&r.RevieweeID,
			&r.ListingID,
			&r.Rating,
			&r.Comment,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// CreateReview inserts r.
//
// Returns:
//   - error: repository.ErrConflict if the reviewer already reviewed the reviewee for this listing.
func (s *Store) CreateReview(ctx context.Context, r *domain.Review) error {
	const op = "postgres.Store.CreateReview"

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	err := s.handle().QueryRow(ctx,
		`INSERT INTO reviews (id, reviewer_id, reviewee_id, listing_id, rating, comment)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		r.ID, r.ReviewerID, r.RevieweeID, r.ListingID, r.Rating, r.Comment,
	).Scan(&r.CreatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) ListReviewsByReviewer(ctx context.Context, reviewerID, listingID uuid.UUID) ([]domain.Review, error) {
	const op = "postgres.Store.ListReviewsByReviewer"

	rows, err := s.handle().Query(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews
		 WHERE reviewer_id = $1 AND listing_id = $2
		 ORDER BY created_at ASC`,
		reviewerID, listingID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectReviews(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (s *Store) ListReviewsForUser(ctx context.Context, revieweeID uuid.UUID) ([]domain.Review, error) {
	const op = "postgres.Store.ListReviewsForUser"

	rows, err := s.handle().Query(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews
		 WHERE reviewee_id = $1
		 ORDER BY created_at DESC`,
		revieweeID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectReviews(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
