package service

import (
	"log/slog"

	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/repository"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/service/admin"
	"github.com/kirinyoku/ticketticket/internal/service/application"
	"github.com/kirinyoku/ticketticket/internal/service/chat"
	"github.com/kirinyoku/ticketticket/internal/service/listing"
	"github.com/kirinyoku/ticketticket/internal/service/profile"
	"github.com/kirinyoku/ticketticket/internal/service/review"
)

type Services struct {
	Listings     *listing.Service
	Applications *application.Service
	Chat         *chat.Service
	Reviews      *review.Service
	Admin        *admin.Service
	Profiles     *profile.Service
}

type Config struct {
	Listing listing.Config
	Review  review.Config
	Admin   admin.Config
	Profile profile.Config
}

// Deps are the collaborators shared by the services. Cache may be nil, and
// so may the limiters, which disables rate limiting.
type Deps struct {
	Store          repository.Store
	Cache          *redisrepo.Cache
	Realtime       chat.Realtime
	Publisher      listing.Publisher
	ApplyLimiter   application.Limiter
	MessageLimiter chat.Limiter
	Filter         *moderation.Filter
	Avatars        profile.AvatarStore
	Logger         *slog.Logger
}

func NewServices(d Deps, cfg Config) *Services {
	return &Services{
		Listings:     listing.New(d.Store, d.Cache, d.Publisher, d.Filter, d.Logger, cfg.Listing),
		Applications: application.New(d.Store, d.Cache, d.Publisher, d.ApplyLimiter, d.Filter, d.Logger),
		Chat:         chat.New(d.Store, d.Realtime, d.Publisher, d.MessageLimiter, d.Filter, d.Logger),
		Reviews:      review.New(d.Store, d.Cache, d.Publisher, d.Filter, d.Logger, cfg.Review),
		Admin:        admin.New(d.Store, d.Cache, d.Publisher, d.Logger, cfg.Admin),
		Profiles:     profile.New(d.Store, d.Cache, d.Avatars, d.Filter, d.Logger, cfg.Profile),
	}
}
