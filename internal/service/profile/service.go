package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/repository"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/service/review"
)

const (
	MaxDisplayNameLen = 50
	MaxBioLen         = 500
	defaultName       = "New user"
)

var xHandleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// AvatarStore persists a picture and returns the URL to show for it.
// avatar.Store satisfies it.
type AvatarStore interface {
	Save(ctx context.Context, userID uuid.UUID, data []byte) (string, error)
}

const DefaultMaxAvatarBytes = 2 << 20

type Config struct {
	MaxAvatarBytes int64
	ProfileTTL     time.Duration
}

type Service struct {
	store   repository.Store
	cache   *redisrepo.Cache
	avatars AvatarStore
	filter  *moderation.Filter
	log     *slog.Logger
	cfg     Config
}

func New(
	store repository.Store,
	cache *redisrepo.Cache,
	avatars AvatarStore,
	filter *moderation.Filter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MaxAvatarBytes <= 0 {
		cfg.MaxAvatarBytes = DefaultMaxAvatarBytes
	}

	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:   store,
		cache:   cache,
		avatars: avatars,
		filter:  filter,
		log:     logger,
		cfg:     cfg,
	}
}

// Me returns the user row of the session subject, creating it from the
// provider's name and picture on first sight.
func (s *Service) Me(ctx context.Context, userID uuid.UUID, name, picture string) (*domain.User, error) {
	const op = "service.profile.Me"

	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > MaxDisplayNameLen {
		name = string(r[:MaxDisplayNameLen])
	}
	if name == "" {
		name = defaultName
	}

	u, err := s.store.EnsureUser(ctx, domain.User{
		ID:          userID,
		DisplayName: name,
		AvatarURL:   picture,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UpdateInput holds the fields to change. Nil fields keep their value.
type UpdateInput struct {
	DisplayName *string
	Bio         *string
	XHandle     *string
}

// UpdateMe edits the caller's own profile.
//
// Returns:
//   - *domain.User: the updated user.
//   - error: a *domain.ValidationError or profile.ErrUserNotFound.
func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, in UpdateInput) (*domain.User, error) {
	const op = "service.profile.UpdateMe"

	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if in.DisplayName != nil {
		name, err := domain.CleanText("displayName", *in.DisplayName, 1, MaxDisplayNameLen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.filter.Check("displayName", name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.DisplayName = name
	}

	if in.Bio != nil {
		bio, err := domain.CleanText("bio", *in.Bio, 0, MaxBioLen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.filter.Check("bio", bio); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.Bio = bio
	}

	if in.XHandle != nil {
		h, err := NormalizeXHandle(*in.XHandle)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.XHandle = h
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, userID)

	return u, nil
}

// NormalizeXHandle strips a leading '@' and checks the X username rules.
// An empty handle clears it.
func NormalizeXHandle(h string) (string, error) {
	h = strings.TrimPrefix(strings.TrimSpace(h), "@")
	if h == "" {
		return "", nil
	}

	if !xHandleRe.MatchString(h) {
		return "", domain.Invalid("xHandle", "must be 1 to 15 letters, digits or underscores")
	}

	return h, nil
}

// UploadAvatar stores a new profile picture for userID. If the avatar store
// cannot keep the file the picture is saved inline as a data URL.
func (s *Service) UploadAvatar(ctx context.Context, userID uuid.UUID, data []byte) (*domain.User, error) {
	const op = "service.profile.UploadAvatar"

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrAvatarEmpty)
	}

	if int64(len(data)) > s.cfg.MaxAvatarBytes {
		return nil, fmt.Errorf("%s: %w", op, ErrAvatarTooLarge)
	}

	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.avatars.Save(ctx, userID, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.UpdateAvatar(ctx, userID, url); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.AvatarURL = url

	s.invalidate(ctx, userID)

	return u, nil
}

type Profile struct {
	User  *domain.User       `json:"user"`
	Stats domain.ReviewStats `json:"reviewStats"`
}

// Get returns the public profile of userID with review statistics.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	const op = "service.profile.Get"

	p, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyUserProfile(userID),
		s.cfg.ProfileTTL,
		func(ctx context.Context) (*Profile, error) {
			u, err := s.user(ctx, userID)
			if err != nil {
				return nil, err
			}

			rs, err := s.store.ListReviewsForUser(ctx, userID)
			if err != nil {
				return nil, err
			}

			return &Profile{User: u, Stats: review.Summarize(rs)}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (s *Service) user(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return u, nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "profile cache invalidation failed", slog.String("user_id", userID.String()), slog.Any("err", err))
	}
}
