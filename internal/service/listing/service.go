package listing

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

const (
	MinSlots = 1
	MaxSlots = 10
)

// Publisher delivers domain events. mq.Publisher and mq.Nop satisfy it.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Config struct {
	// Location decides which calendar day "today" is.
	Location     *time.Location
	CacheTTL     time.Duration
	DefaultLimit int
	MaxLimit     int
}

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	pub    Publisher
	filter *moderation.Filter
	uow    *uow.UoW
	log    *slog.Logger
	cfg    Config
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

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}

	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = 100
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
		cfg:    cfg,
		now:    time.Now,
	}
}

type CreateInput struct {
	// EventID selects an admin event. Its name, date, venue and the price
	// tier for SeatGrade/TicketCountType override the free-form fields.
	EventID           *uuid.UUID
	EventName         string
	EventDate         domain.Date
	Venue             string
	MeetingTime       string
	MeetingLocation   string
	Description       string
	TicketType        domain.TicketType
	SeatGrade         string
	TicketCountType   domain.TicketCountType
	OriginalPriceJPY  int
	AskingPriceJPY    int
	TotalSlots        int
	ExchangeEventName string
	ExchangeSeatGrade string
	SubsidyAmount     int
	SubsidyDirection  domain.SubsidyDirection
}

// Create validates in and stores a new open listing owned by hostID.
//
// Parameters:
//   - ctx: request-scoped context.
//   - hostID: the caller, who becomes the host.
//   - in: listing fields.
//
// Returns:
//   - *domain.Listing: the stored listing.
//   - error: a *domain.ValidationError for rejected input.
func (s *Service) Create(ctx context.Context, hostID uuid.UUID, in CreateInput) (*domain.Listing, error) {
	const op = "service.listing.Create"

	if in.EventID != nil {
		if err := s.applyEvent(ctx, &in); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	l, err := s.build(hostID, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		if err := tx.CreateListing(ctx, l); err != nil {
			return err
		}

		snapshot := *l
		after(func(ctx context.Context) {
			s.publish(ctx, mq.KeyListingCreated, snapshot)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return l, nil
}

func (s *Service) applyEvent(ctx context.Context, in *CreateInput) error {
	ev, err := s.store.GetEvent(ctx, *in.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Invalid("eventId", "event not found")
		}
		return err
	}

	in.EventName = ev.Name
	in.EventDate = ev.EventDate
	if in.Venue == "" {
		in.Venue = ev.Venue
	}

	tier, err := s.store.FindPriceTier(ctx, ev.ID, in.SeatGrade, in.TicketCountType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Invalid("seatGrade", "no price is set for %q (%s) at this event", in.SeatGrade, in.TicketCountType)
		}
		return err
	}

	in.OriginalPriceJPY = tier.PriceJPY

	return nil
}

func (s *Service) build(hostID uuid.UUID, in CreateInput) (*domain.Listing, error) {
	if !in.TicketType.Valid() {
		return nil, domain.Invalid("ticketType", "unknown ticket type %q", in.TicketType)
	}
	if !in.TicketCountType.Valid() {
		return nil, domain.Invalid("ticketCountType", "unknown ticket count type %q", in.TicketCountType)
	}
	if in.TotalSlots < MinSlots || in.TotalSlots > MaxSlots {
		return nil, domain.Invalid("totalSlots", "must be between %d and %d", MinSlots, MaxSlots)
	}
	if in.EventDate.IsZero() {
		return nil, domain.Invalid("eventDate", "is required")
	}
	if in.EventDate.Before(domain.Today(s.now(), s.cfg.Location)) {
		return nil, domain.Invalid("eventDate", "must not be in the past")
	}

	texts := []struct {
		field    string
		val      *string
		min, max int
	}{
		{"eventName", &in.EventName, 1, 200},
		{"venue", &in.Venue, 0, 200},
		{"meetingTime", &in.MeetingTime, 0, 100},
		{"meetingLocation", &in.MeetingLocation, 0, 200},
		{"description", &in.Description, 0, 2000},
		{"seatGrade", &in.SeatGrade, 0, 50},
		{"exchangeEventName", &in.ExchangeEventName, 0, 200},
		{"exchangeSeatGrade", &in.ExchangeSeatGrade, 0, 50},
	}
	for _, t := range texts {
		v, err := domain.CleanText(t.field, *t.val, t.min, t.max)
		if err != nil {
			return nil, err
		}
		if err := s.filter.Check(t.field, v); err != nil {
			return nil, err
		}
		*t.val = v
	}

	if in.TicketType == domain.TicketExchange {
		if in.ExchangeEventName == "" {
			return nil, domain.Invalid("exchangeEventName", "is required for exchange listings")
		}
		if in.OriginalPriceJPY <= 0 {
			return nil, &domain.ValidationError{Field: "originalPriceJPY", Message: "select a price tier first", Reason: domain.ErrPricePending}
		}
		if err := domain.ValidateSubsidy(in.OriginalPriceJPY, in.SubsidyAmount); err != nil {
			return nil, err
		}
		if !in.SubsidyDirection.Valid() {
			return nil, domain.Invalid("subsidyDirection", "unknown direction %q", in.SubsidyDirection)
		}
		if in.SubsidyAmount > 0 && in.SubsidyDirection == domain.SubsidyNone {
			return nil, domain.Invalid("subsidyDirection", "is required when a subsidy is set")
		}
		if in.SubsidyAmount == 0 {
			in.SubsidyDirection = domain.SubsidyNone
		}
		in.AskingPriceJPY = 0
	} else {
		if err := domain.ValidateAskingPrice(in.OriginalPriceJPY, in.TicketType, in.AskingPriceJPY); err != nil {
			return nil, err
		}
		in.ExchangeEventName, in.ExchangeSeatGrade = "", ""
		in.SubsidyAmount, in.SubsidyDirection = 0, domain.SubsidyNone
	}

	return &domain.Listing{
		HostID:            hostID,
		EventID:           in.EventID,
		EventName:         in.EventName,
		EventDate:         in.EventDate,
		Venue:             in.Venue,
		MeetingTime:       in.MeetingTime,
		MeetingLocation:   in.MeetingLocation,
		Description:       in.Description,
		TicketType:        in.TicketType,
		SeatGrade:         in.SeatGrade,
		TicketCountType:   in.TicketCountType,
		OriginalPriceJPY:  in.OriginalPriceJPY,
		AskingPriceJPY:    in.AskingPriceJPY,
		TotalSlots:        in.TotalSlots,
		AvailableSlots:    in.TotalSlots,
		Status:            domain.ListingOpen,
		ExchangeEventName: in.ExchangeEventName,
		ExchangeSeatGrade: in.ExchangeSeatGrade,
		SubsidyAmount:     in.SubsidyAmount,
		SubsidyDirection:  in.SubsidyDirection,
	}, nil
}

// Get returns a listing by id, served from cache when possible.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	const op = "service.listing.Get"

	l, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyListing(id),
		s.cfg.CacheTTL,
		func(ctx context.Context) (*domain.Listing, error) {
			l, err := s.store.GetListing(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrListingNotFound
				}
				return nil, err
			}
			return l, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return l, nil
}

// StatusAll disables the status filter of List.
const StatusAll domain.ListingStatus = "all"

// List returns listings matching f. An empty status means open listings
// only; StatusAll lists every status.
func (s *Service) List(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	const op = "service.listing.List"

	switch {
	case f.Status == "":
		f.Status = domain.ListingOpen
	case f.Status == StatusAll:
		f.Status = ""
	case !f.Status.Valid():
		return nil, domain.Invalid("status", "unknown status %q", f.Status)
	}

	if f.TicketType != "" && !f.TicketType.Valid() {
		return nil, domain.Invalid("ticketType", "unknown ticket type %q", f.TicketType)
	}

	switch f.Sort {
	case "":
		f.Sort = domain.SortEventDate
	case domain.SortEventDate, domain.SortNewest, domain.SortPriceAsc, domain.SortPriceDesc:
	default:
		return nil, domain.Invalid("sort", "unknown sort %q", f.Sort)
	}

	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return nil, domain.Invalid("dateTo", "must not be before dateFrom")
	}

	if f.Limit <= 0 {
		f.Limit = s.cfg.DefaultLimit
	}
	if f.Limit > s.cfg.MaxLimit {
		f.Limit = s.cfg.MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	out, err := s.store.ListListings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ListByHost returns every listing of hostID regardless of status, newest first.
func (s *Service) ListByHost(ctx context.Context, hostID uuid.UUID, limit, offset int) ([]domain.Listing, error) {
	return s.List(ctx, domain.ListingFilter{
		Status: StatusAll,
		HostID: &hostID,
		Sort:   domain.SortNewest,
		Limit:  limit,
		Offset: offset,
	})
}

// UpdateStatus moves the listing to next on behalf of its host. Requesting
// the current status is a no-op. Pending applications are left as they are.
//
// Returns:
//   - *domain.Listing: the listing after the change.
//   - error: ErrNotOwner, ErrListingNotFound or domain.ErrInvalidTransition.
func (s *Service) UpdateStatus(
	ctx context.Context,
	callerID, id uuid.UUID,
	next domain.ListingStatus,
) (*domain.Listing, error) {
	const op = "service.listing.UpdateStatus"

	if !next.Valid() {
		return nil, fmt.Errorf("%s: %w", op, domain.Invalid("status", "unknown status %q", next))
	}

	var out *domain.Listing

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		l, err := s.ownedListing(ctx, tx, callerID, id)
		if err != nil {
			return err
		}

		out = l
		if l.Status == next {
			return nil
		}

		if !l.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, l.Status, next)
		}

		prev := l.Status
		if err := tx.UpdateListingStatus(ctx, id, next); err != nil {
			return err
		}
		l.Status = next

		after(func(ctx context.Context) {
			s.invalidate(ctx, id)
			s.publish(ctx, mq.KeyListingStatusChanged, map[string]any{
				"listingId": id,
				"from":      prev,
				"to":        next,
			})
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

type PriceUpdate struct {
	AskingPriceJPY int
	SubsidyAmount  int
	// SubsidyDirection replaces the stored direction when set.
	SubsidyDirection *domain.SubsidyDirection
}

// UpdatePrice changes the asking price, or the subsidy and its direction for
// exchange listings, against the stored original price. A zero subsidy
// clears the direction.
func (s *Service) UpdatePrice(
	ctx context.Context,
	callerID, id uuid.UUID,
	in PriceUpdate,
) (*domain.Listing, error) {
	const op = "service.listing.UpdatePrice"

	var out *domain.Listing

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		l, err := s.ownedListing(ctx, tx, callerID, id)
		if err != nil {
			return err
		}

		if l.Status == domain.ListingClosed {
			return ErrListingClosed
		}

		askingPriceJPY, subsidyAmount := in.AskingPriceJPY, in.SubsidyAmount
		direction := domain.SubsidyNone

		if l.TicketType == domain.TicketExchange {
			direction = l.SubsidyDirection
			if in.SubsidyDirection != nil {
				if !in.SubsidyDirection.Valid() {
					return domain.Invalid("subsidyDirection", "unknown direction %q", *in.SubsidyDirection)
				}
				direction = *in.SubsidyDirection
			}

			if err := domain.ValidateSubsidy(l.OriginalPriceJPY, subsidyAmount); err != nil {
				return err
			}
			if subsidyAmount > 0 && direction == domain.SubsidyNone {
				return domain.Invalid("subsidyDirection", "is required when a subsidy is set")
			}
			if subsidyAmount == 0 {
				direction = domain.SubsidyNone
			}
			askingPriceJPY = 0
		} else {
			if err := domain.ValidateAskingPrice(l.OriginalPriceJPY, l.TicketType, askingPriceJPY); err != nil {
				return err
			}
			subsidyAmount = 0
		}

		if err := tx.UpdateListingPrice(ctx, id, askingPriceJPY, subsidyAmount, direction); err != nil {
			return err
		}
		l.AskingPriceJPY, l.SubsidyAmount, l.SubsidyDirection = askingPriceJPY, subsidyAmount, direction
		out = l

		after(func(ctx context.Context) {
			s.invalidate(ctx, id)
			s.publish(ctx, mq.KeyListingPriceChanged, map[string]any{
				"listingId":      id,
				"askingPriceJPY": askingPriceJPY,
				"subsidyAmount":  subsidyAmount,
			})
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Delete removes the listing together with its applications, conversations
// and reviews.
func (s *Service) Delete(ctx context.Context, callerID, id uuid.UUID) error {
	const op = "service.listing.Delete"

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		if _, err := s.ownedListing(ctx, tx, callerID, id); err != nil {
			return err
		}

		if err := tx.DeleteListing(ctx, id); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.invalidate(ctx, id)
			s.publish(ctx, mq.KeyListingDeleted, map[string]any{"listingId": id})
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) ownedListing(ctx context.Context, tx repository.Store, callerID, id uuid.UUID) (*domain.Listing, error) {
	l, err := tx.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}

	if l.HostID != callerID {
		return nil, ErrNotOwner
	}

	return l, nil
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.InvalidateListing(ctx, id); err != nil {
		s.log.WarnContext(ctx, "listing cache invalidation failed", slog.String("listing_id", id.String()), slog.Any("err", err))
	}
}

func (s *Service) publish(ctx context.Context, key string, v any) {
	if err := s.pub.PublishJSON(ctx, key, v); err != nil {
		s.log.WarnContext(ctx, "publish failed", slog.String("key", key), slog.Any("err", err))
	}
}
