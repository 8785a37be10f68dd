package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

// CreateEvent inserts e together with its price tiers. Callers wanting
// atomicity run it inside InTx.
func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	const op = "postgres.Store.CreateEvent"

	db := s.handle()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO events (id, name, event_date, venue, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		e.ID, e.Name, e.EventDate.Time(), e.Venue, e.Description,
	).Scan(&e.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	if err := s.replaceTiers(ctx, db, e.ID, e.PriceTiers); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// UpdateEvent overwrites the event row and replaces its tier set.
func (s *Store) UpdateEvent(ctx context.Context, e *domain.Event) error {
	const op = "postgres.Store.UpdateEvent"

	db := s.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events
		 SET name = $2, event_date = $3, venue = $4, description = $5
		 WHERE id = $1`,
		e.ID, e.Name, e.EventDate.Time(), e.Venue, e.Description,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	if _, err := db.Exec(ctx, `DELETE FROM ticket_price_tiers WHERE event_id = $1`, e.ID); err != nil {
		return wrapDBErr(op, err)
	}

	if err := s.replaceTiers(ctx, db, e.ID, e.PriceTiers); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) replaceTiers(ctx context.Context, db DB, eventID uuid.UUID, tiers []domain.TicketPriceTier) error {
	if len(tiers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range tiers {
		batch.Queue(
			`INSERT INTO ticket_price_tiers (event_id, seat_grade, ticket_count_type, price_jpy)
			 VALUES ($1, $2, $3, $4)`,
			eventID, t.SeatGrade, t.TicketCountType, t.PriceJPY,
		)
	}

	return db.SendBatch(ctx, batch).Close()
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.Store.DeleteEvent"

	tag, err := s.handle().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.Store.GetEvent"

	db := s.handle()

	var (
		e    domain.Event
		date time.Time
	)

	if err := db.QueryRow(ctx,
		`SELECT id, name, event_date, venue, description, created_at
		 FROM events
		 WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &date, &e.Venue, &e.Description, &e.CreatedAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	e.EventDate = domain.DateOf(date)

	tiers, err := s.listTiers(ctx, db, []uuid.UUID{id})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	e.PriceTiers = tiers[id]
	if e.PriceTiers == nil {
		e.PriceTiers = []domain.TicketPriceTier{}
	}

	return &e, nil
}

// ListEvents returns all events by date with their tiers attached.
func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const op = "postgres.Store.ListEvents"

	db := s.handle()

	rows, err := db.Query(ctx,
		`SELECT id, name, event_date, venue, description, created_at
		 FROM events
		 ORDER BY event_date ASC, name ASC`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out := []domain.Event{}
	var ids []uuid.UUID

	for rows.Next() {
		var (
			e    domain.Event
			date time.Time
		)
		if err := rows.Scan(&e.ID, &e.Name, &date, &e.Venue, &e.Description, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, wrapDBErr(op, err)
		}
		e.EventDate = domain.DateOf(date)
		out = append(out, e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(ids) == 0 {
		return out, nil
	}

	tiers, err := s.listTiers(ctx, db, ids)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	for i := range out {
		out[i].PriceTiers = tiers[out[i].ID]
		if out[i].PriceTiers == nil {
			out[i].PriceTiers = []domain.TicketPriceTier{}
		}
	}

	return out, nil
}

func (s *Store) listTiers(ctx context.Context, db DB, eventIDs []uuid.UUID) (map[uuid.UUID][]domain.TicketPriceTier, error) {
	rows, err := db.Query(ctx,
		`SELECT event_id, seat_grade, ticket_count_type, price_jpy
		 FROM ticket_price_tiers
		 WHERE event_id = ANY($1)
		 ORDER BY seat_grade ASC, ticket_count_type ASC`,
		eventIDs,
	)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make(map[uuid.UUID][]domain.TicketPriceTier, len(eventIDs))
	for rows.Next() {
		var (
			eventID uuid.UUID
			t       domain.TicketPriceTier
		)
		if err := rows.Scan(&eventID, &t.SeatGrade, &t.TicketCountType, &t.PriceJPY); err != nil {
			return nil, err
		}
		out[eventID] = append(out[eventID], t)
	}

	return out, rows.Err()
}

// FindPriceTier looks up the official price for one seat grade and count
// type of an event.
//
// Returns:
//   - error: repository.ErrNotFound if the event has no such tier.
func (s *Store) FindPriceTier(
	ctx context.Context,
	eventID uuid.UUID,
	seatGrade string,
	countType domain.TicketCountType,
) (*domain.TicketPriceTier, error) {
	const op = "postgres.Store.FindPriceTier"

	var t domain.TicketPriceTier
	if err := s.handle().QueryRow(ctx,
		`SELECT seat_grade, ticket_count_type, price_jpy
		 FROM ticket_price_tiers
		 WHERE event_id = $1 AND seat_grade = $2 AND ticket_count_type = $3`,
		eventID, seatGrade, countType,
	).Scan(&t.SeatGrade, &t.TicketCountType, &t.PriceJPY); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &t, nil
}
