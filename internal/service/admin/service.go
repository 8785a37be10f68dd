package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/mq"
	"github.com/kirinyoku/ticketticket/internal/repository"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/uow"
)

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Config struct {
	EventTTL     time.Duration
	EventListTTL time.Duration
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	pub   Publisher
	uow   *uow.UoW
	log   *slog.Logger
	cfg   Config
}

func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pub Publisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 5 * time.Minute
	}

	if cfg.EventListTTL <= 0 {
		cfg.EventListTTL = time.Minute
	}

	if pub == nil {
		pub = mq.Nop{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store: store,
		cache: cache,
		pub:   pub,
		uow:   uow.NewUoW(store),
		log:   logger,
		cfg:   cfg,
	}
}

type EventInput struct {
	Name        string
	EventDate   domain.Date
	Venue       string
	Description string
	PriceTiers  []domain.TicketPriceTier
}

func (in EventInput) validate() (*domain.Event, error) {
	name, err := domain.CleanText("name", in.Name, 1, 200)
	if err != nil {
		return nil, err
	}

	venue, err := domain.CleanText("venue", in.Venue, 0, 200)
	if err != nil {
		return nil, err
	}

	desc, err := domain.CleanText("description", in.Description, 0, 2000)
	if err != nil {
		return nil, err
	}

	if in.EventDate.IsZero() {
		return nil, domain.Invalid("eventDate", "is required")
	}

	type tierKey struct {
		grade string
		count domain.TicketCountType
	}
	seen := make(map[tierKey]bool, len(in.PriceTiers))
	tiers := make([]domain.TicketPriceTier, 0, len(in.PriceTiers))

	for i, t := range in.PriceTiers {
		field := fmt.Sprintf("priceTiers[%d]", i)

		grade, err := domain.CleanText(field+".seatGrade", t.SeatGrade, 1, 50)
		if err != nil {
			return nil, err
		}
		if !t.TicketCountType.Valid() {
			return nil, domain.Invalid(field+".ticketCountType", "unknown ticket count type %q", t.TicketCountType)
		}
		if t.PriceJPY <= 0 {
			return nil, domain.Invalid(field+".priceJPY", "must be greater than 0")
		}

		k := tierKey{grade, t.TicketCountType}
		if seen[k] {
			return nil, &domain.ValidationError{Field: field, Message: ErrTierConflict.Error(), Reason: ErrTierConflict}
		}
		seen[k] = true

		tiers = append(tiers, domain.TicketPriceTier{SeatGrade: grade, TicketCountType: t.TicketCountType, PriceJPY: t.PriceJPY})
	}

	return &domain.Event{
		Name:        name,
		EventDate:   in.EventDate,
		Venue:       venue,
		Description: desc,
		PriceTiers:  tiers,
	}, nil
}

// CreateEvent stores an event template together with its price tiers.
//
// Returns:
//   - *domain.Event: the stored event.
//   - error: a *domain.ValidationError, matching ErrTierConflict for a
//     repeated seat grade and ticket count.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (*domain.Event, error) {
	const op = "service.admin.CreateEvent"

	e, err := in.validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		if err := tx.CreateEvent(ctx, e); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrTierConflict
			}
			return err
		}

		after(func(ctx context.Context) {
			s.changed(ctx, e.ID, "created")
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

// UpdateEvent overwrites the event and replaces all of its price tiers.
// Listings already created from it keep their copied prices.
func (s *Service) UpdateEvent(ctx context.Context, id uuid.UUID, in EventInput) (*domain.Event, error) {
	const op = "service.admin.UpdateEvent"

	e, err := in.validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.ID = id

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		if err := tx.UpdateEvent(ctx, e); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return ErrEventNotFound
			case errors.Is(err, repository.ErrConflict):
				return ErrTierConflict
			}
			return err
		}

		after(func(ctx context.Context) {
			s.changed(ctx, id, "updated")
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	const op = "service.admin.DeleteEvent"

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		if err := tx.DeleteEvent(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		after(func(ctx context.Context) {
			s.changed(ctx, id, "deleted")
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetEvent returns an event with its price tiers, served from cache when
// possible.
//
// Returns:
//   - *domain.Event: the event.
//   - error: admin.ErrEventNotFound if the event does not exist.
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "service.admin.GetEvent"

	e, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEvent(id),
		s.cfg.EventTTL,
		func(ctx context.Context) (*domain.Event, error) {
			e, err := s.store.GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrEventNotFound
				}
				return nil, err
			}
			return e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

// ListEvents returns every event ordered by date, served from cache when
// possible.
func (s *Service) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const op = "service.admin.ListEvents"

	out, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventList(),
		s.cfg.EventListTTL,
		func(ctx context.Context) ([]domain.Event, error) {
			return s.store.ListEvents(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) changed(ctx context.Context, id uuid.UUID, action string) {
	if err := s.cache.InvalidateEvent(ctx, id); err != nil {
		s.log.WarnContext(ctx, "event cache invalidation failed", slog.String("event_id", id.String()), slog.Any("err", err))
	}

	if err := s.pub.PublishJSON(ctx, mq.KeyEventChanged, map[string]any{"eventId": id, "action": action}); err != nil {
		s.log.WarnContext(ctx, "publish failed", slog.String("key", mq.KeyEventChanged), slog.Any("err", err))
	}
}
