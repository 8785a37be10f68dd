package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

const userColumns = `id, display_name, avatar_url, bio, x_handle, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User

	if err := row.Scan(
		&u.ID,
		&u.DisplayName,
		&u.AvatarURL,
		&u.Bio,
		&u.XHandle,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &u, nil
}

// EnsureUser creates the profile row on first sight of a user. An existing
// row is returned untouched so profile edits survive later logins.
func (s *Store) EnsureUser(ctx context.Context, u domain.User) (*domain.User, error) {
	const op = "postgres.Store.EnsureUser"

	db := s.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO users (id, display_name, avatar_url)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID, u.DisplayName, u.AvatarURL,
	); err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, u.ID))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.Store.GetUser"

	u, err := scanUser(s.handle().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return u, nil
}

// UpdateUser stores the editable profile fields of u and refreshes its
// UpdatedAt.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	const op = "postgres.Store.UpdateUser"

	err := s.handle().QueryRow(ctx,
		`UPDATE users
		 SET display_name = $2, bio = $3, x_handle = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		u.ID, u.DisplayName, u.Bio, u.XHandle,
	).Scan(&u.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error {
	const op = "postgres.Store.UpdateAvatar"

	tag, err := s.handle().Exec(ctx,
		`UPDATE users SET avatar_url = $2, updated_at = now() WHERE id = $1`,
		id, avatarURL,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}
