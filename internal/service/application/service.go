package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/mq"
	"github.com/kirinyoku/ticketticket/internal/repository"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/uow"
)

const MaxMessageLen = 500

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Limiter is a per-key hit counter. redis.SlidingWindowLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, suffix string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type Service struct {
	store   repository.Store
	cache   *redisrepo.Cache
	pub     Publisher
	limiter Limiter
	filter  *moderation.Filter
	uow     *uow.UoW
	log     *slog.Logger
}

// New builds the service. cache may be nil, and limiter may be nil to
// disable rate limiting.
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pub Publisher,
	limiter Limiter,
	filter *moderation.Filter,
	logger *slog.Logger,
) *Service {
	if pub == nil {
		pub = mq.Nop{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:   store,
		cache:   cache,
		pub:     pub,
		limiter: limiter,
		filter:  filter,
		uow:     uow.NewUoW(store),
		log:     logger,
	}
}

// Apply files a pending application of guestID to a listing.
//
// Parameters:
//   - ctx: request-scoped context.
//   - guestID: the applicant.
//   - listingID: the listing applied to.
//   - message: optional note to the host.
//
// Returns:
//   - *domain.Application: the pending application.
//   - error: ErrListingNotFound, ErrSelfApplication, ErrListingNotOpen or
//     ErrAlreadyApplied.
//   - error: a *domain.RateLimitError when the guest applies too often.
func (s *Service) Apply(
	ctx context.Context,
	guestID, listingID uuid.UUID,
	message string,
) (*domain.Application, error) {
	const op = "service.application.Apply"

	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrListingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if l.HostID == guestID {
		return nil, fmt.Errorf("%s: %w", op, ErrSelfApplication)
	}

	if l.Status != domain.ListingOpen {
		return nil, fmt.Errorf("%s: %w", op, ErrListingNotOpen)
	}

	message, err = domain.CleanText("message", message, 0, MaxMessageLen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.filter.Check("message", message); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.store.FindActiveApplication(ctx, listingID, guestID); err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyApplied)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.allow(ctx, guestID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &domain.Application{
		ListingID: listingID,
		GuestID:   guestID,
		Status:    domain.ApplicationPending,
		Message:   message,
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		if err := tx.CreateApplication(ctx, a); err != nil {
			// the partial unique index catches a concurrent duplicate
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyApplied
			}
			if errors.Is(err, repository.ErrNotFound) {
				return ErrListingNotFound
			}
			return err
		}

		snapshot := *a
		after(func(ctx context.Context) {
			s.publish(ctx, mq.KeyApplicationCreated, snapshot)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

type AcceptResult struct {
	Application  *domain.Application  `json:"application"`
	Conversation *domain.Conversation `json:"conversation"`
}

// Accept accepts a pending application on behalf of the listing host. The
// status change, the slot decrement and the conversation are committed
// together. Accepting an accepted application only ensures its
// conversation.
//
// Returns:
//   - *AcceptResult: the accepted application and its conversation.
//   - error: ErrNotHost, ErrNoSlotsAvailable, ErrConcurrentUpdate or
//     domain.ErrInvalidTransition.
func (s *Service) Accept(ctx context.Context, hostID, applicationID uuid.UUID) (*AcceptResult, error) {
	const op = "service.application.Accept"

	var res AcceptResult

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		a, l, err := s.load(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		if l.HostID != hostID {
			return ErrNotHost
		}

		switch a.Status {
		case domain.ApplicationAccepted:
		case domain.ApplicationPending:
			if err := tx.UpdateApplicationStatus(ctx, a.ID, domain.ApplicationPending, domain.ApplicationAccepted); err != nil {
				return casErr(err)
			}

			if _, err := tx.DecrementAvailableSlots(ctx, l.ID); err != nil {
				if errors.Is(err, repository.ErrNoSlots) {
					return ErrNoSlotsAvailable
				}
				return err
			}

			a.Status = domain.ApplicationAccepted

			snapshot := *a
			after(func(ctx context.Context) {
				s.invalidateListing(ctx, snapshot.ListingID)
				s.publish(ctx, mq.KeyApplicationAccepted, snapshot)
			})
		default:
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, a.Status, domain.ApplicationAccepted)
		}

		conv, _, err := tx.EnsureConversation(ctx, l.ID, l.HostID, a.GuestID)
		if err != nil {
			return err
		}

		res = AcceptResult{Application: a, Conversation: conv}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &res, nil
}

// Reject turns a pending application down. Rejecting twice is a no-op.
func (s *Service) Reject(ctx context.Context, hostID, applicationID uuid.UUID) (*domain.Application, error) {
	const op = "service.application.Reject"

	a, err := s.transition(ctx, applicationID, domain.ApplicationRejected, mq.KeyApplicationRejected,
		func(a *domain.Application, l *domain.Listing) error {
			if l.HostID != hostID {
				return ErrNotHost
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

// Cancel withdraws a pending application on behalf of its guest.
// Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, guestID, applicationID uuid.UUID) (*domain.Application, error) {
	const op = "service.application.Cancel"

	a, err := s.transition(ctx, applicationID, domain.ApplicationCancelled, mq.KeyApplicationCancelled,
		func(a *domain.Application, _ *domain.Listing) error {
			if a.GuestID != guestID {
				return ErrNotApplicant
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Service) transition(
	ctx context.Context,
	applicationID uuid.UUID,
	to domain.ApplicationStatus,
	key string,
	authorize func(a *domain.Application, l *domain.Listing) error,
) (*domain.Application, error) {
	var out *domain.Application

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		a, l, err := s.load(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		if err := authorize(a, l); err != nil {
			return err
		}

		out = a
		if a.Status == to {
			return nil
		}

		if !a.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, a.Status, to)
		}

		if err := tx.UpdateApplicationStatus(ctx, a.ID, a.Status, to); err != nil {
			return casErr(err)
		}
		a.Status = to

		snapshot := *a
		after(func(ctx context.Context) {
			s.publish(ctx, key, snapshot)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// ListForListing returns the applications of a listing to its host.
func (s *Service) ListForListing(ctx context.Context, hostID, listingID uuid.UUID) ([]domain.Application, error) {
	const op = "service.application.ListForListing"

	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrListingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if l.HostID != hostID {
		return nil, fmt.Errorf("%s: %w", op, ErrNotHost)
	}

	out, err := s.store.ListApplicationsByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) ListMine(ctx context.Context, guestID uuid.UUID) ([]domain.Application, error) {
	const op = "service.application.ListMine"

	out, err := s.store.ListApplicationsByGuest(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) load(
	ctx context.Context,
	tx repository.Store,
	applicationID uuid.UUID,
) (*domain.Application, *domain.Listing, error) {
	a, err := tx.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrApplicationNotFound
		}
		return nil, nil, err
	}

	l, err := tx.GetListing(ctx, a.ListingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrListingNotFound
		}
		return nil, nil, err
	}

	return a, l, nil
}

func casErr(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return ErrConcurrentUpdate
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrApplicationNotFound
	}
	return err
}

func (s *Service) allow(ctx context.Context, guestID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}

	ok, _, retry, err := s.limiter.Allow(ctx, guestID.String())
	if err != nil {
		// fail open while the limiter backend is unreachable
		s.log.WarnContext(ctx, "rate limiter unavailable", slog.Any("err", err))
		return nil
	}

	if !ok {
		return &domain.RateLimitError{RetryAfter: retry}
	}

	return nil
}

func (s *Service) invalidateListing(ctx context.Context, id uuid.UUID) {
	if err := s.cache.InvalidateListing(ctx, id); err != nil {
		s.log.WarnContext(ctx, "listing cache invalidation failed", slog.String("listing_id", id.String()), slog.Any("err", err))
	}
}

func (s *Service) publish(ctx context.Context, key string, v any) {
	if err := s.pub.PublishJSON(ctx, key, v); err != nil {
		s.log.WarnContext(ctx, "publish failed", slog.String("key", key), slog.Any("err", err))
	}
}
