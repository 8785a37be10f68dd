package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	// URL takes precedence over the discrete fields, e.g. redis://:pw@host:6379/0.
	URL      string
	Addr     string
	Password string
	DB       int
}

func (c Config) options() (*redis.Options, error) {
	if c.URL != "" {
		return redis.ParseURL(c.URL)
	}

	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "redis.New"

	opts, err := cfg.options()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := client.Ping(ctxPing).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, nil
}
