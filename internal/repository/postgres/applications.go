package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

const applicationColumns = `id, listing_id, guest_id, status, message, created_at, updated_at`

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var a domain.Application

	if err := row.Scan(
		&a.ID,
		&a.ListingID,
		&a.GuestID,
		&a.Status,
		&a.Message,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &a, nil
}

func collectApplications(rows pgx.Rows) ([]domain.Application, error) {
	defer rows.Close()

	out := []domain.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

// CreateApplication inserts a. The partial unique index on
// (listing_id, guest_id) rejects a second live application.
//
// Returns:
//   - error: repository.ErrConflict if the guest already has a non-cancelled application.
func (s *Store) CreateApplication(ctx context.Context, a *domain.Application) error {
	const op = "postgres.Store.CreateApplication"

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = domain.ApplicationPending
	}

	err := s.handle().QueryRow(ctx,
		`INSERT INTO applications (id, listing_id, guest_id, status, message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		a.ID, a.ListingID, a.GuestID, a.Status, a.Message,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	const op = "postgres.Store.GetApplication"

	a, err := scanApplication(s.handle().QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return a, nil
}

// FindActiveApplication returns the guest's non-cancelled application for
// the listing, or repository.ErrNotFound.
func (s *Store) FindActiveApplication(ctx context.Context, listingID, guestID uuid.UUID) (*domain.Application, error) {
	const op = "postgres.Store.FindActiveApplication"

	a, err := scanApplication(s.handle().QueryRow(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE listing_id = $1 AND guest_id = $2 AND status <> 'cancelled'`,
		listingID, guestID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return a, nil
}

func (s *Store) ListApplicationsByListing(ctx context.Context, listingID uuid.UUID) ([]domain.Application, error) {
	const op = "postgres.Store.ListApplicationsByListing"

	rows, err := s.handle().Query(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE listing_id = $1
		 ORDER BY created_at ASC`,
		listingID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectApplications(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (s *Store) ListApplicationsByGuest(ctx context.Context, guestID uuid.UUID) ([]domain.Application, error) {
	const op = "postgres.Store.ListApplicationsByGuest"

	rows, err := s.handle().Query(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE guest_id = $1
		 ORDER BY created_at DESC`,
		guestID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectApplications(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// UpdateApplicationStatus is a compare-and-set on the status column.
//
// Returns:
//   - error: repository.ErrNotFound if the application does not exist.
//   - error: repository.ErrConflict if its status is no longer from.
func (s *Store) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error {
	const op = "postgres.Store.UpdateApplicationStatus"

	db := s.handle()

	tag, err := db.Exec(ctx,
		`UPDATE applications
		 SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var current domain.ApplicationStatus
	err = db.QueryRow(ctx, `SELECT status FROM applications WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if err != nil {
		return wrapDBErr(op, err)
	}

	return fmt.Errorf("%s: %w: status is %s", op, repository.ErrConflict, current)
}
