package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	Timezone      string        `envconfig:"APP_TIMEZONE" default:"Asia/Tokyo"`
	StorageDriver string        `envconfig:"STORAGE_DRIVER" default:"postgres"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"168h"`

	Server    ServerConfig    `envconfig:"SERVER"`
	Postgres  PostgresConfig  `envconfig:"POSTGRES"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	RabbitMQ  RabbitMQConfig  `envconfig:"RABBITMQ"`
	JWT       JWTConfig       `envconfig:"JWT"`
	Recaptcha RecaptchaConfig `envconfig:"RECAPTCHA"`
	Avatar    AvatarConfig    `envconfig:"AVATAR"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	CORS      CORSConfig      `envconfig:"CORS"`
}

type ServerConfig struct {
	Host string `envconfig:"HOST" default:"localhost"`
	Port int    `envconfig:"PORT" default:"8080"`
}

type PostgresConfig struct {
	User        string `envconfig:"USER"`
	Password    string `envconfig:"PASSWORD"`
	Name        string `envconfig:"DB" default:"ticketticket"`
	Host        string `envconfig:"HOST" default:"localhost"`
	Port        int    `envconfig:"PORT" default:"5432"`
	SSLMode     string `envconfig:"SSLMODE" default:"disable"`
	MaxConns    int32  `envconfig:"MAX_CONNS" default:"10"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`
}

// DSN returns the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"true"`
	URL      string `envconfig:"URL"`
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type RabbitMQConfig struct {
	// URL is empty when domain events are not published.
	URL      string `envconfig:"URL"`
	Exchange string `envconfig:"EXCHANGE" default:"ticketticket.events"`
}

type JWTConfig struct {
	Secret string `envconfig:"SECRET" required:"true"`
	Issuer string `envconfig:"ISSUER" default:"ticketticket"`
}

type RecaptchaConfig struct {
	Secret    string `envconfig:"SECRET"`
	VerifyURL string `envconfig:"VERIFY_URL" default:"https://www.google.com/recaptcha/api/siteverify"`
}

type AvatarConfig struct {
	Dir      string `envconfig:"DIR" default:"./data/avatars"`
	BaseURL  string `envconfig:"BASE_URL" default:"/avatars"`
	MaxBytes int64  `envconfig:"MAX_BYTES" default:"2097152"`
}

type RateLimitConfig struct {
	Messages     int           `envconfig:"MESSAGES" default:"30"`
	Applications int           `envconfig:"APPLICATIONS" default:"10"`
	Window       time.Duration `envconfig:"WINDOW" default:"1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("missing JWT_SECRET")
	}

	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))

	switch c.StorageDriver {
	case DriverPostgres:
		if c.Postgres.User == "" {
			return errors.New("missing POSTGRES_USER")
		}
		if c.Postgres.Password == "" {
			return errors.New("missing POSTGRES_PASSWORD")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q", c.StorageDriver)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	if c.Avatar.MaxBytes <= 0 {
		return fmt.Errorf("invalid AVATAR_MAX_BYTES %d", c.Avatar.MaxBytes)
	}

	return nil
}

// Location returns the zone used for date-only comparisons.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
