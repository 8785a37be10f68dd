package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kirinyoku/ticketticket/internal/auth"
	"github.com/kirinyoku/ticketticket/internal/avatar"
	"github.com/kirinyoku/ticketticket/internal/captcha"
	"github.com/kirinyoku/ticketticket/internal/config"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/mq"
	"github.com/kirinyoku/ticketticket/internal/postgres"
	"github.com/kirinyoku/ticketticket/internal/redis"
	"github.com/kirinyoku/ticketticket/internal/repository"
	"github.com/kirinyoku/ticketticket/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/ticketticket/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/service"
	"github.com/kirinyoku/ticketticket/internal/service/admin"
	"github.com/kirinyoku/ticketticket/internal/service/application"
	"github.com/kirinyoku/ticketticket/internal/service/chat"
	"github.com/kirinyoku/ticketticket/internal/service/listing"
	"github.com/kirinyoku/ticketticket/internal/service/profile"
	"github.com/kirinyoku/ticketticket/internal/service/review"
	httpgin "github.com/kirinyoku/ticketticket/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	closers    []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// Storage
	var store repository.Store
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		store = memory.NewStore()
	default:
		pool, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN(),
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				a.close()
				return nil, fmt.Errorf("failed to migrate postgres: %w", err)
			}
		}

		store = postgresrepo.NewStore(pool)
	}

	// Redis backed infrastructure, with in-process fallbacks
	var (
		cache          *redisrepo.Cache
		idem           *redisrepo.IdempotencyStore
		realtime       chat.Realtime = memory.NewBroker()
		applyLimiter   application.Limiter
		messageLimiter chat.Limiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, redis.Config{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)

		cache = redisrepo.New(rdb)
		idem = redisrepo.NewIdempotencyStore(rdb, 24*time.Hour, time.Minute)
		realtime = redisrepo.NewMessagePubSub(rdb)
		applyLimiter = redisrepo.NewSlidingWindowLimiter(
			rdb, redisrepo.KeyRateLimitPrefix("apply"), cfg.RateLimit.Applications, cfg.RateLimit.Window,
		)
		messageLimiter = redisrepo.NewSlidingWindowLimiter(
			rdb, redisrepo.KeyRateLimitPrefix("msg"), cfg.RateLimit.Messages, cfg.RateLimit.Window,
		)
	} else {
		logger.Warn("redis disabled: no caching, rate limiting or idempotency keys")
	}

	// Domain event publishing
	var publisher listing.Publisher = mq.Nop{}
	if cfg.RabbitMQ.URL != "" {
		p, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		publisher = p
	}

	tokens, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.SessionTTL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	avatars := avatar.NewStore(cfg.Avatar.Dir, cfg.Avatar.BaseURL, logger)

	loc := cfg.Location()
	services := service.NewServices(service.Deps{
		Store:          store,
		Cache:          cache,
		Realtime:       realtime,
		Publisher:      publisher,
		ApplyLimiter:   applyLimiter,
		MessageLimiter: messageLimiter,
		Filter:         moderation.Default(),
		Avatars:        avatars,
		Logger:         logger,
	}, service.Config{
		Listing: listing.Config{Location: loc},
		Review:  review.Config{Location: loc},
		Admin:   admin.Config{},
		Profile: profile.Config{MaxAvatarBytes: cfg.Avatar.MaxBytes},
	})

	opts := httpgin.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxAvatarBytes: cfg.Avatar.MaxBytes,
	}
	if strings.HasPrefix(cfg.Avatar.BaseURL, "/") {
		opts.AvatarDir = cfg.Avatar.Dir
		opts.AvatarRoute = cfg.Avatar.BaseURL
	}

	var verifier *captcha.Verifier
	if cfg.Recaptcha.Secret != "" {
		verifier = captcha.New(cfg.Recaptcha.Secret, cfg.Recaptcha.VerifyURL, nil)
	}

	router := httpgin.NewRouter(httpgin.Deps{
		Services: services,
		Tokens:   tokens,
		Idem:     idem,
		Captcha:  verifier,
		Logger:   logger,
	}, opts)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// close releases infrastructure in reverse order of acquisition.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
