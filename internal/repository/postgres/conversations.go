package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation

	if err := row.Scan(&c.ID, &c.ListingID, &c.HostID, &c.GuestID, &c.CreatedAt); err != nil {
		return nil, err
	}

	return &c, nil
}

// EnsureConversation returns the conversation for (listingID, guestID),
// inserting it first when none exists. Concurrent callers converge on the
// same row through the unique constraint.
func (s *Store) EnsureConversation(
	ctx context.Context,
	listingID, hostID, guestID uuid.UUID,
) (*domain.Conversation, bool, error) {
	const op = "postgres.Store.EnsureConversation"

	db := s.handle()

	c, err := scanConversation(db.QueryRow(ctx,
		`INSERT INTO conversations (id, listing_id, host_id, guest_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (listing_id, guest_id) DO NOTHING
		 RETURNING id, listing_id, host_id, guest_id, created_at`,
		uuid.New(), listingID, hostID, guestID,
	))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, wrapDBErr(op, err)
	}

	c, err = scanConversation(db.QueryRow(ctx,
		`SELECT id, listing_id, host_id, guest_id, created_at
		 FROM conversations
		 WHERE listing_id = $1 AND guest_id = $2`,
		listingID, guestID,
	))
	if err != nil {
		return nil, false, wrapDBErr(op, err)
	}

	return c, false, nil
}

func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	const op = "postgres.Store.GetConversation"

	c, err := scanConversation(s.handle().QueryRow(ctx,
		`SELECT id, listing_id, host_id, guest_id, created_at
		 FROM conversations
		 WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return c, nil
}

// ListConversationsForUser returns every conversation userID takes part in,
// most recently active first, with the latest message and the number of
// unread messages from the counterpart.
func (s *Store) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	const op = "postgres.Store.ListConversationsForUser"

	rows, err := s.handle().Query(ctx,
		`SELECT
			c.id, c.listing_id, c.host_id, c.guest_id, c.created_at,
			l.event_name,
			m.id, m.sender_id, m.content, m.is_read, m.created_at,
			(SELECT count(*)
			   FROM messages u
			  WHERE u.conversation_id = c.id
			    AND u.sender_id <> $1
			    AND NOT u.is_read) AS unread
		 FROM conversations c
		 JOIN listings l ON l.id = c.listing_id
		 LEFT JOIN LATERAL (
			SELECT id, sender_id, content, is_read, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY seq DESC
			LIMIT 1
		 ) m ON true
		 WHERE c.host_id = $1 OR c.guest_id = $1
		 ORDER BY COALESCE(m.created_at, c.created_at) DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := []domain.ConversationSummary{}
	for rows.Next() {
		var (
			cs        domain.ConversationSummary
			msgID     *uuid.UUID
			msgSender *uuid.UUID
			msgText   *string
			msgRead   *bool
			msgAt     *time.Time
		)

		if err := rows.Scan(
			&cs.ID, &cs.ListingID, &cs.HostID, &cs.GuestID, &cs.CreatedAt,
			&cs.EventName,
			&msgID, &msgSender, &msgText, &msgRead, &msgAt,
			&cs.UnreadCount,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		cs.CounterpartID = cs.Counterpart(userID)

		if msgID != nil {
			cs.LastMessage = &domain.Message{
				ID:             *msgID,
				ConversationID: cs.ID,
				SenderID:       *msgSender,
				Content:        *msgText,
				IsRead:         *msgRead,
				CreatedAt:      *msgAt,
			}
		}

		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
