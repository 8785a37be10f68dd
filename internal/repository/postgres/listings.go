package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

const listingColumns = `id, host_id, event_id, event_name, event_date, venue, meeting_time,
	meeting_location, description, ticket_type, seat_grade, ticket_count_type,
	original_price_jpy, asking_price_jpy, total_slots, available_slots, status,
	exchange_event_name, exchange_seat_grade, subsidy_amount, subsidy_direction,
	created_at, updated_at`

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l         domain.Listing
		eventDate time.Time
	)

	err := row.Scan(
		&l.ID,
		&l.HostID,
		&l.EventID,
		&l.EventName,
		&eventDate,
		&l.Venue,
		&l.MeetingTime,
		&l.MeetingLocation,
		&l.Description,
		&l.TicketType,
		&l.SeatGrade,
		&l.TicketCountType,
		&l.OriginalPriceJPY,
		&l.AskingPriceJPY,
		&l.TotalSlots,
		&l.AvailableSlots,
		&l.Status,
		&l.ExchangeEventName,
		&l.ExchangeSeatGrade,
		&l.SubsidyAmount,
		&l.SubsidyDirection,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.EventDate = domain.DateOf(eventDate)

	return &l, nil
}

// CreateListing inserts l and fills in its ID and timestamps.
func (s *Store) CreateListing(ctx context.Context, l *domain.Listing) error {
	const op = "postgres.Store.CreateListing"

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	err := s.handle().QueryRow(ctx,
		`INSERT INTO listings (
			id, host_id, event_id, event_name, event_date, venue, meeting_time,
			meeting_location, description, ticket_type, seat_grade, ticket_count_type,
			original_price_jpy, asking_price_jpy, total_slots, available_slots, status,
			exchange_event_name, exchange_seat_grade, subsidy_amount, subsidy_direction
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING created_at, updated_at`,
		l.ID, l.HostID, l.EventID, l.EventName, l.EventDate.Time(), l.Venue, l.MeetingTime,
		l.MeetingLocation, l.Description, l.TicketType, l.SeatGrade, l.TicketCountType,
		l.OriginalPriceJPY, l.AskingPriceJPY, l.TotalSlots, l.AvailableSlots, l.Status,
		l.ExchangeEventName, l.ExchangeSeatGrade, l.SubsidyAmount, l.SubsidyDirection,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// GetListing retrieves a listing by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the listing does not exist.
func (s *Store) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	const op = "postgres.Store.GetListing"

	l, err := scanListing(s.handle().QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return l, nil
}

var listingOrder = map[domain.ListingSort]string{
	domain.SortEventDate: "event_date ASC, created_at DESC",
	domain.SortNewest:    "created_at DESC",
	domain.SortPriceAsc:  "asking_price_jpy ASC, event_date ASC",
	domain.SortPriceDesc: "asking_price_jpy DESC, event_date ASC",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListListings returns listings matching f. Zero-valued filter fields do not
// constrain the result.
func (s *Store) ListListings(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	const op = "postgres.Store.ListListings"

	var (
		where []string
		args  []any
	)

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.TicketType != "" {
		add("ticket_type = $%d", f.TicketType)
	}
	if f.EventName != "" {
		add(`event_name ILIKE '%%' || $%d || '%%'`, likeEscaper.Replace(f.EventName))
	}
	if f.HostID != nil {
		add("host_id = $%d", *f.HostID)
	}
	if f.DateFrom != nil {
		add("event_date >= $%d", f.DateFrom.Time())
	}
	if f.DateTo != nil {
		add("event_date <= $%d", f.DateTo.Time())
	}

	order, ok := listingOrder[f.Sort]
	if !ok {
		order = listingOrder[domain.SortEventDate]
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, order, len(args)-1, len(args))

	rows, err := s.handle().Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (s *Store) UpdateListingStatus(ctx context.Context, id uuid.UUID, status domain.ListingStatus) error {
	const op = "postgres.Store.UpdateListingStatus"

	tag, err := s.handle().Exec(ctx,
		`UPDATE listings SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (s *Store) UpdateListingPrice(
	ctx context.Context,
	id uuid.UUID,
	askingPriceJPY, subsidyAmount int,
	direction domain.SubsidyDirection,
) error {
	const op = "postgres.Store.UpdateListingPrice"

	tag, err := s.handle().Exec(ctx,
		`UPDATE listings
		 SET asking_price_jpy = $2, subsidy_amount = $3, subsidy_direction = $4, updated_at = now()
		 WHERE id = $1`,
		id, askingPriceJPY, subsidyAmount, direction,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

// DecrementAvailableSlots takes one slot in a single conditional update so
// concurrent acceptances never drive the count below zero.
//
// Returns:
//   - int: the slots left after the decrement.
//   - error: repository.ErrNoSlots if no slot was left.
//   - error: repository.ErrNotFound if the listing does not exist.
func (s *Store) DecrementAvailableSlots(ctx context.Context, id uuid.UUID) (int, error) {
	const op = "postgres.Store.DecrementAvailableSlots"

	db := s.handle()

	var left int
	err := db.QueryRow(ctx,
		`UPDATE listings
		 SET available_slots = available_slots - 1, updated_at = now()
		 WHERE id = $1 AND available_slots > 0
		 RETURNING available_slots`,
		id,
	).Scan(&left)
	if err == nil {
		return left, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, wrapDBErr(op, err)
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return 0, wrapDBErr(op, err)
	}

	if !exists {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return 0, fmt.Errorf("%s: %w", op, repository.ErrNoSlots)
}

func (s *Store) DeleteListing(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.Store.DeleteListing"

	tag, err := s.handle().Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}
