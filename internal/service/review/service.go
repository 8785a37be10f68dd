package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/mq"
	"github.com/kirinyoku/ticketticket/internal/repository"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/uow"
)

const (
	MinRating     = 1
	MaxRating     = 5
	MaxCommentLen = 1000
)

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Config struct {
	Location *time.Location
}

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	pub    Publisher
	filter *moderation.Filter
	uow    *uow.UoW
	log    *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pub Publisher,
	filter *moderation.Filter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	if pub == nil {
		pub = mq.Nop{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:  store,
		cache:  cache,
		pub:    pub,
		filter: filter,
		uow:    uow.NewUoW(store),
		log:    logger,
		loc:    cfg.Location,
		now:    time.Now,
	}
}

// Eligibility reports whether viewerID may review anyone for the listing.
// A nil viewerID stands for an anonymous caller. Ineligible results carry a
// reason code instead of an error.
func (s *Service) Eligibility(
	ctx context.Context,
	viewerID *uuid.UUID,
	listingID uuid.UUID,
) (domain.ReviewEligibility, error) {
	const op = "service.review.Eligibility"

	res, err := s.eligibility(ctx, s.store, viewerID, listingID)
	if err != nil {
		return domain.ReviewEligibility{}, fmt.Errorf("%s: %w", op, err)
	}

	return res.ReviewEligibility, nil
}

type evaluation struct {
	domain.ReviewEligibility
	listing  *domain.Listing
	reviewed map[uuid.UUID]bool
}

func (s *Service) eligibility(
	ctx context.Context,
	repo repository.Store,
	viewerID *uuid.UUID,
	listingID uuid.UUID,
) (*evaluation, error) {
	in := domain.ReviewEligibilityInput{
		ViewerID: viewerID,
		Today:    domain.Today(s.now(), s.loc),
	}
	ev := &evaluation{reviewed: map[uuid.UUID]bool{}}

	if viewerID == nil {
		ev.ReviewEligibility = domain.EvaluateReviewEligibility(in)
		return ev, nil
	}

	l, err := repo.GetListing(ctx, listingID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		ev.ReviewEligibility = domain.EvaluateReviewEligibility(in)
		return ev, nil
	case err != nil:
		return nil, err
	}
	in.Listing, ev.listing = l, l

	if in.Applications, err = repo.ListApplicationsByListing(ctx, listingID); err != nil {
		return nil, err
	}

	if in.ViewerReviews, err = repo.ListReviewsByReviewer(ctx, *viewerID, listingID); err != nil {
		return nil, err
	}
	for _, r := range in.ViewerReviews {
		ev.reviewed[r.RevieweeID] = true
	}

	ev.ReviewEligibility = domain.EvaluateReviewEligibility(in)

	return ev, nil
}

type SubmitInput struct {
	ListingID  uuid.UUID
	RevieweeID uuid.UUID
	Rating     int
	Comment    string
}

// Submit stores a review by reviewerID. The reviewee must be one of the
// targets the eligibility gate currently allows.
//
// Returns:
//   - *domain.Review: the stored review.
//   - error: ErrListingNotFound, ErrAlreadyReviewed, a *NotEligibleError or
//     a *domain.ValidationError.
func (s *Service) Submit(ctx context.Context, reviewerID uuid.UUID, in SubmitInput) (*domain.Review, error) {
	const op = "service.review.Submit"

	if in.Rating < MinRating || in.Rating > MaxRating {
		return nil, fmt.Errorf("%s: %w", op, domain.Invalid("rating", "must be between %d and %d", MinRating, MaxRating))
	}

	comment, err := domain.CleanText("comment", in.Comment, 0, MaxCommentLen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.filter.Check("comment", comment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r := &domain.Review{
		ReviewerID: reviewerID,
		RevieweeID: in.RevieweeID,
		ListingID:  in.ListingID,
		Rating:     in.Rating,
		Comment:    comment,
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		ev, err := s.eligibility(ctx, tx, &reviewerID, in.ListingID)
		if err != nil {
			return err
		}

		if ev.listing == nil {
			return ErrListingNotFound
		}

		if ev.reviewed[in.RevieweeID] {
			return ErrAlreadyReviewed
		}

		if !ev.CanReviewUser(in.RevieweeID) {
			return &NotEligibleError{Reason: ev.Reason}
		}

		if err := tx.CreateReview(ctx, r); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyReviewed
			}
			return err
		}

		snapshot := *r
		after(func(ctx context.Context) {
			// the reviewee's profile carries the review stats
			if err := s.cache.InvalidateUser(ctx, snapshot.RevieweeID); err != nil {
				s.log.WarnContext(ctx, "profile cache invalidation failed",
					slog.String("user_id", snapshot.RevieweeID.String()),
					slog.Any("err", err),
				)
			}
			if err := s.pub.PublishJSON(ctx, mq.KeyReviewCreated, snapshot); err != nil {
				s.log.WarnContext(ctx, "publish failed", slog.String("key", mq.KeyReviewCreated), slog.Any("err", err))
			}
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r, nil
}

type UserReviews struct {
	Reviews []domain.Review    `json:"reviews"`
	Stats   domain.ReviewStats `json:"stats"`
}

// ListForUser returns the reviews received by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) (*UserReviews, error) {
	const op = "service.review.ListForUser"

	rs, err := s.store.ListReviewsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &UserReviews{Reviews: rs, Stats: Summarize(rs)}, nil
}

// Summarize counts reviews and averages their ratings to one decimal.
func Summarize(rs []domain.Review) domain.ReviewStats {
	if len(rs) == 0 {
		return domain.ReviewStats{}
	}

	sum := 0
	for _, r := range rs {
		sum += r.Rating
	}

	avg := float64(sum) / float64(len(rs))

	return domain.ReviewStats{
		Count:   len(rs),
		Average: math.Round(avg*10) / 10,
	}
}
