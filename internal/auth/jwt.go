// Package auth issues and verifies the signed session tokens that carry a
// user's identity from the OAuth edge to the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("jwt secret is empty")
)

// Claims is the session token payload. Subject holds the user uuid.
type Claims struct {
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a uuid.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}
	return id, nil
}

// Identity is what a caller proved about itself.
type Identity struct {
	UserID   uuid.UUID
	Role     string
	Name     string
	Picture  string
	Provider string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret, issuer string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs an HS256 session token for id.
func (m *Manager) Issue(id Identity) (string, time.Time, error) {
	const op = "auth.Manager.Issue"

	role := id.Role
	if role == "" {
		role = RoleUser
	}

	now := m.now().UTC()
	exp := now.Add(m.ttl)

	claims := Claims{
		Role:     role,
		Name:     id.Name,
		Picture:  id.Picture,
		Provider: id.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// Parse verifies tokenStr and returns the identity it carries.
func (m *Manager) Parse(tokenStr string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := c.UserID()
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		UserID:   userID,
		Role:     c.Role,
		Name:     c.Name,
		Picture:  c.Picture,
		Provider: c.Provider,
	}, nil
}
